package application

import (
	"fmt"
	"sort"

	"datedine/src/domain"
)

// VectorIndex индекс точного поиска ближайших векторов по скалярному
// произведению. Векторы нормализуются при добавлении и при запросе,
// поэтому скалярное произведение совпадает с косинусной близостью.
// После построения индекс только читается и безопасен для
// одновременных запросов.
type VectorIndex struct {
	dim     int
	vectors [][]float32
}

// SearchHit результат поиска: позиция вектора в порядке добавления и близость
type SearchHit struct {
	Index int
	Score float64
}

// NewVectorIndex создает пустой индекс
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Add добавляет вектор в индекс. Размерность фиксируется первым вектором.
func (idx *VectorIndex) Add(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("пустой вектор нельзя добавить в индекс")
	}

	if idx.dim == 0 {
		idx.dim = len(v)
	} else if len(v) != idx.dim {
		return fmt.Errorf("размерность вектора %d не совпадает с размерностью индекса %d", len(v), idx.dim)
	}

	idx.vectors = append(idx.vectors, domain.Normalize(v))
	return nil
}

// Len возвращает количество векторов в индексе
func (idx *VectorIndex) Len() int {
	return len(idx.vectors)
}

// Search возвращает k ближайших векторов к запросу, отсортированных
// по убыванию близости. k больше размера индекса обрезается до размера,
// пустой индекс дает пустой результат.
func (idx *VectorIndex) Search(query []float32, k int) []SearchHit {
	if k > len(idx.vectors) {
		k = len(idx.vectors)
	}
	if k <= 0 {
		return nil
	}

	q := domain.Normalize(query)

	hits := make([]SearchHit, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		hits = append(hits, SearchHit{Index: i, Score: domain.Dot(q, v)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	return hits[:k]
}
