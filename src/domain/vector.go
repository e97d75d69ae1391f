package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Normalize возвращает копию вектора единичной длины (L2).
// Нулевой вектор возвращается как есть.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, v)
		return out
	}

	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Mean вычисляет поэлементное среднее векторов одинаковой размерности
func Mean(vectors ...[]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("нет векторов для усреднения")
	}

	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("размерности векторов не совпадают: %d и %d", dim, len(v))
		}
	}

	out := make([]float32, dim)
	for _, v := range vectors {
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}

	return out, nil
}

// Dot вычисляет скалярное произведение двух векторов.
// Для векторов разной длины возвращает 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// EncodeVector сериализует вектор в BLOB: float32 little-endian подряд
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector разбирает BLOB обратно в вектор
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("некорректная длина BLOB: %d байт", len(b))
	}

	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
