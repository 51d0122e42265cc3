package render

import "math"

type vec3 [3]float32

type vec4 [4]float32

// mat4 is a column-major 4x4 matrix.
type mat4 [4]vec4

func identity() mat4 {
	var m mat4
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

func mul(a, b mat4) mat4 {
	var m mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var s float32
			for k := 0; k < 4; k++ {
				s += a[k][r] * b[c][k]
			}
			m[c][r] = s
		}
	}
	return m
}

func transform(m mat4, v vec4) vec4 {
	var out vec4
	for r := 0; r < 4; r++ {
		out[r] = m[0][r]*v[0] + m[1][r]*v[1] + m[2][r]*v[2] + m[3][r]*v[3]
	}
	return out
}

func frustum(l, r, b, t, n, f float32) mat4 {
	var m mat4
	m[0][0] = 2 * n / (r - l)
	m[1][1] = 2 * n / (t - b)
	m[2][0] = (r + l) / (r - l)
	m[2][1] = (t + b) / (t - b)
	m[2][2] = -(f + n) / (f - n)
	m[2][3] = -1
	m[3][2] = -2 * f * n / (f - n)
	return m
}

func translate(m mat4, x, y, z float32) mat4 {
	t := identity()
	t[3] = vec4{x, y, z, 1}
	return mul(m, t)
}

func rotateX(m mat4, a float32) mat4 {
	s, c := sincos(a)
	r := identity()
	r[1][1], r[2][1] = c, -s
	r[1][2], r[2][2] = s, c
	return mul(m, r)
}

func rotateY(m mat4, a float32) mat4 {
	s, c := sincos(a)
	r := identity()
	r[0][0], r[2][0] = c, s
	r[0][2], r[2][2] = -s, c
	return mul(m, r)
}

func rotateZ(m mat4, a float32) mat4 {
	s, c := sincos(a)
	r := identity()
	r[0][0], r[1][0] = c, -s
	r[0][1], r[1][1] = s, c
	return mul(m, r)
}

func sincos(a float32) (float32, float32) {
	s, c := math.Sincos(float64(a))
	return float32(s), float32(c)
}

func radians(deg float32) float32 {
	return deg * math.Pi / 180
}
