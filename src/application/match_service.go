package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"datedine/src/domain"
)

// Options параметры алгоритма подбора
type Options struct {
	// TopK количество кандидатов из индекса до фильтра по времени
	TopK int
	// MinDatingTime минимально допустимое время на само свидание, минуты
	MinDatingTime float64
	// MaxResults максимальная длина итогового списка
	MaxResults int
	// DefaultCity город, подставляемый в адрес ресторана без локации
	DefaultCity string
}

// DefaultOptions значения по умолчанию, совпадающие с исходной политикой
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		MinDatingTime: 30,
		MaxResults:    3,
		DefaultCity:   "Mumbai",
	}
}

// DateMatchService реализация сервиса подбора: семантический поиск по
// атмосфере плюс фильтр по бюджетам времени. Корпус и индекс строятся
// один раз при создании и дальше только читаются.
type DateMatchService struct {
	restaurants []domain.Restaurant
	index       *VectorIndex
	embedder    domain.Embedder
	travel      domain.TravelResolver
	opts        Options
	log         zerolog.Logger
}

// NewDateMatchService создает сервис: загружает корпус из репозитория
// и строит индекс по сохраненным векторам. Порядок инициализации
// строгий: корпус -> векторы -> индекс -> готовность.
func NewDateMatchService(
	repo domain.RestaurantRepository,
	embedder domain.Embedder,
	travel domain.TravelResolver,
	opts Options,
	log zerolog.Logger,
) (*DateMatchService, error) {
	restaurants, embeddings, err := repo.GetAllRestaurants()
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить корпус ресторанов: %w", err)
	}

	index := NewVectorIndex()
	for i, emb := range embeddings {
		if err := index.Add(emb); err != nil {
			return nil, fmt.Errorf("не удалось проиндексировать ресторан %q: %w", restaurants[i].Name, err)
		}
	}

	log.Info().Int("restaurants", len(restaurants)).Msg("корпус загружен, индекс построен")

	return &DateMatchService{
		restaurants: restaurants,
		index:       index,
		embedder:    embedder,
		travel:      travel,
		opts:        opts,
		log:         log,
	}, nil
}

// travelOutcome времена туда-обратно для одного кандидата либо причина отказа
type travelOutcome struct {
	roundTrip1 float64
	roundTrip2 float64
	err        error
}

// Match подбирает рестораны для пары. Предпочтения обоих участников
// усредняются в один вектор запроса, из индекса берутся TopK кандидатов,
// затем каждый проверяется на выполнимость по времени.
func (s *DateMatchService) Match(ctx context.Context, req domain.MatchRequest) (*domain.MatchResult, error) {
	vecs, err := s.embedder.EmbedTexts([]string{req.Users[0].Vibe, req.Users[1].Vibe})
	if err != nil {
		return nil, fmt.Errorf("не удалось построить векторы предпочтений: %w", err)
	}
	if len(vecs) != 2 {
		return nil, fmt.Errorf("провайдер вернул %d векторов вместо 2", len(vecs))
	}

	// Простое среднее: предпочтения обоих участников весят одинаково
	query, err := domain.Mean(vecs[0], vecs[1])
	if err != nil {
		return nil, fmt.Errorf("не удалось усреднить предпочтения: %w", err)
	}

	hits := s.index.Search(query, s.opts.TopK)
	outcomes := s.resolveTravel(ctx, req, hits)

	accepted := make([]domain.Recommendation, 0, len(hits))
	for i, hit := range hits {
		r := s.restaurants[hit.Index]

		if outcomes[i].err != nil {
			s.log.Warn().Err(outcomes[i].err).Str("restaurant", r.Name).
				Msg("кандидат исключен: время в пути не определено")
			continue
		}

		effective := minFloat(
			req.Users[0].BudgetMinutes-outcomes[i].roundTrip1,
			req.Users[1].BudgetMinutes-outcomes[i].roundTrip2,
		)
		if effective < s.opts.MinDatingTime {
			continue
		}

		accepted = append(accepted, domain.Recommendation{
			Name:                r.Name,
			Review:              r.Review,
			Similarity:          hit.Score,
			RoundTripUser1:      outcomes[i].roundTrip1,
			RoundTripUser2:      outcomes[i].roundTrip2,
			EffectiveDatingTime: effective,
		})
	}

	if len(accepted) == 0 {
		// Ничего не прошло фильтр по времени: возвращаем лучших по
		// атмосфере без временных оценок, это полезнее пустого ответа
		return &domain.MatchResult{Recommendations: s.fallback(hits), Fallback: true}, nil
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].EffectiveDatingTime > accepted[j].EffectiveDatingTime
	})
	if len(accepted) > s.opts.MaxResults {
		accepted = accepted[:s.opts.MaxResults]
	}

	return &domain.MatchResult{Recommendations: accepted}, nil
}

// resolveTravel запрашивает времена в пути для всех кандидатов параллельно.
// Результаты складываются по индексу кандидата, поэтому итог не зависит
// от порядка завершения горутин.
func (s *DateMatchService) resolveTravel(ctx context.Context, req domain.MatchRequest, hits []SearchHit) []travelOutcome {
	resolver := s.travel
	if sr, ok := s.travel.(domain.SessionResolver); ok {
		// Кеш геокодирования живет только в рамках этого запроса
		resolver = sr.NewSession()
	}

	outcomes := make([]travelOutcome, len(hits))
	var wg sync.WaitGroup
	for i, hit := range hits {
		wg.Add(1)
		go func(i int, r domain.Restaurant) {
			defer wg.Done()
			dest := r.LocationOrDefault(s.opts.DefaultCity)

			t1, err := resolver.Resolve(ctx, req.Users[0].Origin, dest)
			if err != nil {
				outcomes[i].err = err
				return
			}
			t2, err := resolver.Resolve(ctx, req.Users[1].Origin, dest)
			if err != nil {
				outcomes[i].err = err
				return
			}

			// Обратная дорога считается равной прямой, отдельный маршрут
			// назад не запрашивается
			outcomes[i] = travelOutcome{roundTrip1: 2 * t1.Minutes, roundTrip2: 2 * t2.Minutes}
		}(i, s.restaurants[hit.Index])
	}
	wg.Wait()

	return outcomes
}

// fallback собирает резервный список из сырых результатов поиска
func (s *DateMatchService) fallback(hits []SearchHit) []domain.Recommendation {
	recs := make([]domain.Recommendation, 0, len(hits))
	for _, hit := range hits {
		r := s.restaurants[hit.Index]
		recs = append(recs, domain.Recommendation{
			Name:       r.Name,
			Review:     r.Review,
			Similarity: hit.Score,
		})
	}
	return recs
}

// GetAllRestaurants возвращает весь загруженный корпус
func (s *DateMatchService) GetAllRestaurants() ([]domain.Restaurant, error) {
	out := make([]domain.Restaurant, len(s.restaurants))
	copy(out, s.restaurants)
	return out, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
