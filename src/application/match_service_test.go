package application

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datedine/src/domain"
)

// stubRepo имитация репозитория с заранее заданным корпусом
type stubRepo struct {
	restaurants []domain.Restaurant
	embeddings  [][]float32
}

func (s *stubRepo) SaveRestaurant(domain.Restaurant, []float32) error { return nil }
func (s *stubRepo) GetAllRestaurants() ([]domain.Restaurant, [][]float32, error) {
	return s.restaurants, s.embeddings, nil
}
func (s *stubRepo) DeleteRestaurant(string) error { return nil }
func (s *stubRepo) Close() error                  { return nil }

// stubEmbedder имитация провайдера векторов
type stubEmbedder struct {
	fn func(texts []string) ([][]float32, error)
}

func (s stubEmbedder) EmbedTexts(texts []string) ([][]float32, error) { return s.fn(texts) }

// stubResolver имитация резолвера времени в пути
type stubResolver struct {
	fn func(origin, destination string) (domain.TravelEstimate, error)
}

func (s stubResolver) Resolve(_ context.Context, origin, destination string) (domain.TravelEstimate, error) {
	return s.fn(origin, destination)
}

// constEmbedder возвращает один и тот же вектор для любого текста
func constEmbedder(v []float32) stubEmbedder {
	return stubEmbedder{fn: func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = v
		}
		return out, nil
	}}
}

func defaultRequest() domain.MatchRequest {
	return domain.MatchRequest{Users: [2]domain.Participant{
		{Vibe: "Cozy, candlelight, quiet", Origin: "Powai, Mumbai", BudgetMinutes: 120},
		{Vibe: "Rooftop, romantic, good coffee", Origin: "Dadar, Mumbai", BudgetMinutes: 120},
	}}
}

func newTestService(t *testing.T, repo *stubRepo, embedder domain.Embedder, resolver domain.TravelResolver, opts Options) *DateMatchService {
	t.Helper()
	service, err := NewDateMatchService(repo, embedder, resolver, opts, zerolog.Nop())
	require.NoError(t, err)
	return service
}

func TestMatchAcceptsCandidateWithinBudgets(t *testing.T) {
	repo := &stubRepo{
		restaurants: []domain.Restaurant{{Name: "Bayview Bistro", Review: "quiet dinner", Location: "Bandra, Mumbai"}},
		embeddings:  [][]float32{{1, 0}},
	}

	// Дорога в одну сторону: 20 минут первому, 25 второму
	resolver := stubResolver{fn: func(origin, _ string) (domain.TravelEstimate, error) {
		if origin == "Powai, Mumbai" {
			return domain.TravelEstimate{Minutes: 20}, nil
		}
		return domain.TravelEstimate{Minutes: 25}, nil
	}}

	service := newTestService(t, repo, constEmbedder([]float32{1, 0}), resolver, DefaultOptions())

	result, err := service.Match(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 1)
	assert.False(t, result.Fallback)

	rec := result.Recommendations[0]
	assert.Equal(t, "Bayview Bistro", rec.Name)
	assert.InDelta(t, 40, rec.RoundTripUser1, 1e-9)
	assert.InDelta(t, 50, rec.RoundTripUser2, 1e-9)
	// min(120-40, 120-50) = 70
	assert.InDelta(t, 70, rec.EffectiveDatingTime, 1e-9)
	assert.InDelta(t, 1.0, rec.Similarity, 1e-6)
}

func TestMatchRejectsCandidateOverBudget(t *testing.T) {
	repo := &stubRepo{
		restaurants: []domain.Restaurant{{Name: "Bayview Bistro", Review: "quiet dinner"}},
		embeddings:  [][]float32{{1, 0}},
	}

	// min(120-100, 120-20) = 20 < 30 — кандидат не проходит
	resolver := stubResolver{fn: func(origin, _ string) (domain.TravelEstimate, error) {
		if origin == "Powai, Mumbai" {
			return domain.TravelEstimate{Minutes: 50}, nil
		}
		return domain.TravelEstimate{Minutes: 10}, nil
	}}

	service := newTestService(t, repo, constEmbedder([]float32{1, 0}), resolver, DefaultOptions())

	result, err := service.Match(context.Background(), defaultRequest())
	require.NoError(t, err)

	// Резервный список без временных оценок
	assert.True(t, result.Fallback)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Bayview Bistro", result.Recommendations[0].Name)
	assert.Zero(t, result.Recommendations[0].EffectiveDatingTime)
	assert.Zero(t, result.Recommendations[0].RoundTripUser1)
}

func TestMatchDropsUnresolvableCandidate(t *testing.T) {
	repo := &stubRepo{
		restaurants: []domain.Restaurant{
			{Name: "Reachable", Review: "nice", Location: "Good, Mumbai"},
			{Name: "Unreachable", Review: "nice too", Location: "Bad, Mumbai"},
		},
		embeddings: [][]float32{{1, 0}, {1, 0}},
	}

	resolver := stubResolver{fn: func(_, destination string) (domain.TravelEstimate, error) {
		if strings.HasPrefix(destination, "Bad") {
			return domain.TravelEstimate{}, fmt.Errorf("%w: адрес не найден", domain.ErrUnresolvable)
		}
		return domain.TravelEstimate{Minutes: 10}, nil
	}}

	service := newTestService(t, repo, constEmbedder([]float32{1, 0}), resolver, DefaultOptions())

	result, err := service.Match(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 1)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Reachable", result.Recommendations[0].Name)
}

func TestMatchSortsByEffectiveTimeAndLimits(t *testing.T) {
	// Пять кандидатов с разными временами в пути, все по атмосфере равны
	oneWay := map[string]float64{
		"L1, Mumbai": 40,   // effective 40
		"L2, Mumbai": 15,   // effective 90
		"L3, Mumbai": 30,   // effective 60
		"L4, Mumbai": 5,    // effective 110
		"L5, Mumbai": 42.5, // effective 35
	}

	repo := &stubRepo{}
	for i := 1; i <= 5; i++ {
		repo.restaurants = append(repo.restaurants, domain.Restaurant{
			Name:     fmt.Sprintf("R%d", i),
			Review:   "review",
			Location: fmt.Sprintf("L%d, Mumbai", i),
		})
		repo.embeddings = append(repo.embeddings, []float32{1, 0})
	}

	resolver := stubResolver{fn: func(_, destination string) (domain.TravelEstimate, error) {
		return domain.TravelEstimate{Minutes: oneWay[destination]}, nil
	}}

	service := newTestService(t, repo, constEmbedder([]float32{1, 0}), resolver, DefaultOptions())

	result, err := service.Match(context.Background(), defaultRequest())
	require.NoError(t, err)

	// Не больше трех, по убыванию времени на свидание
	require.Len(t, result.Recommendations, 3)
	assert.False(t, result.Fallback)

	assert.Equal(t, "R4", result.Recommendations[0].Name)
	assert.InDelta(t, 110, result.Recommendations[0].EffectiveDatingTime, 1e-9)
	assert.Equal(t, "R2", result.Recommendations[1].Name)
	assert.InDelta(t, 90, result.Recommendations[1].EffectiveDatingTime, 1e-9)
	assert.Equal(t, "R3", result.Recommendations[2].Name)
	assert.InDelta(t, 60, result.Recommendations[2].EffectiveDatingTime, 1e-9)
}

func TestMatchEmbedderFailure(t *testing.T) {
	repo := &stubRepo{
		restaurants: []domain.Restaurant{{Name: "Bayview Bistro", Review: "quiet dinner"}},
		embeddings:  [][]float32{{1, 0}},
	}

	embedder := stubEmbedder{fn: func([]string) ([][]float32, error) {
		return nil, fmt.Errorf("модель недоступна")
	}}
	resolver := stubResolver{fn: func(_, _ string) (domain.TravelEstimate, error) {
		return domain.TravelEstimate{Minutes: 10}, nil
	}}

	service := newTestService(t, repo, embedder, resolver, DefaultOptions())

	_, err := service.Match(context.Background(), defaultRequest())
	assert.Error(t, err)
}

func TestMatchEmptyCorpus(t *testing.T) {
	service := newTestService(t, &stubRepo{}, constEmbedder([]float32{1, 0}),
		stubResolver{fn: func(_, _ string) (domain.TravelEstimate, error) {
			return domain.TravelEstimate{Minutes: 10}, nil
		}}, DefaultOptions())

	result, err := service.Match(context.Background(), defaultRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
}

// bagOfWordsEmbedder детерминированный провайдер для сквозного теста:
// вектор — счетчики слов фиксированного словаря
func bagOfWordsEmbedder() stubEmbedder {
	vocab := []string{"candlelight", "quiet", "rooftop", "coffee", "spicy", "loud"}
	return stubEmbedder{fn: func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			v := make([]float32, len(vocab))
			lower := strings.ToLower(text)
			for j, word := range vocab {
				v[j] = float32(strings.Count(lower, word))
			}
			out[i] = v
		}
		return out, nil
	}}
}

func TestMatchEndToEndVibeRanking(t *testing.T) {
	repo := &stubRepo{
		restaurants: []domain.Restaurant{
			{Name: "Candle House", Review: "Candlelight dinner, quiet and cozy", Location: "A, Mumbai"},
			{Name: "Sky Bar", Review: "Rooftop bar with great coffee", Location: "B, Mumbai"},
			{Name: "Chaat Corner", Review: "Spicy and loud street food", Location: "C, Mumbai"},
		},
	}

	embedder := bagOfWordsEmbedder()
	for _, r := range repo.restaurants {
		vecs, err := embedder.EmbedTexts([]string{r.Review})
		require.NoError(t, err)
		repo.embeddings = append(repo.embeddings, vecs[0])
	}

	// Времена в пути одинаковы и укладываются в бюджеты для всех
	resolver := stubResolver{fn: func(_, _ string) (domain.TravelEstimate, error) {
		return domain.TravelEstimate{Minutes: 10}, nil
	}}

	service := newTestService(t, repo, embedder, resolver, DefaultOptions())

	// Почти одинаковые по смыслу предпочтения с общими словами
	// из отзыва первого ресторана
	req := domain.MatchRequest{Users: [2]domain.Participant{
		{Vibe: "quiet candlelight evening", Origin: "Powai, Mumbai", BudgetMinutes: 120},
		{Vibe: "candlelight and quiet", Origin: "Dadar, Mumbai", BudgetMinutes: 120},
	}}

	result, err := service.Match(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 3)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Candle House", result.Recommendations[0].Name)
}
