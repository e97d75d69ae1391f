package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"datedine/src/application"
	"datedine/src/domain"
	"datedine/src/infrastructure"
	"datedine/src/infrastructure/ai"
	"datedine/src/infrastructure/httpapi"
	"datedine/src/infrastructure/routing"
)

func main() {
	// Определяем флаги командной строки
	configPath := flag.String("config", "config/config.yaml", "Путь к файлу конфигурации")
	dbPath := flag.String("db", "./datedine.db", "Путь к файлу базы данных")
	action := flag.String("action", "serve", "Действие: serve, import, match, demo")
	csvPath := flag.String("csv", "", "Путь к CSV файлу с ресторанами (для действия import)")
	vibe1 := flag.String("vibe1", "Cozy, candlelight, quiet", "Атмосфера первого участника (для действия match)")
	vibe2 := flag.String("vibe2", "Rooftop, romantic, good coffee", "Атмосфера второго участника (для действия match)")
	origin1 := flag.String("origin1", "Powai, Mumbai", "Точка отправления первого участника")
	origin2 := flag.String("origin2", "Dadar, Mumbai", "Точка отправления второго участника")
	budget1 := flag.Float64("budget1", 120, "Бюджет времени первого участника, минуты")
	budget2 := flag.Float64("budget2", 120, "Бюджет времени второго участника, минуты")

	flag.Parse()

	// .env удобен при локальном запуске, его отсутствие не ошибка
	_ = godotenv.Load()

	config, err := ai.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(config.Logging.Level)

	aiClient := ai.NewAIClient(config)

	repo, err := infrastructure.NewSQLiteRestaurantRepository(*dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("ошибка инициализации репозитория")
	}
	defer repo.Close()

	switch *action {
	case "import":
		if *csvPath == "" {
			logger.Fatal().Msg("для действия 'import' требуется указать путь к CSV файлу (-csv)")
		}
		if err := handleImport(repo, aiClient, *csvPath); err != nil {
			logger.Fatal().Err(err).Msg("ошибка импорта корпуса")
		}
	case "match":
		req := domain.MatchRequest{Users: [2]domain.Participant{
			{Vibe: *vibe1, Origin: *origin1, BudgetMinutes: *budget1},
			{Vibe: *vibe2, Origin: *origin2, BudgetMinutes: *budget2},
		}}
		if err := handleMatch(repo, aiClient, config, logger, req); err != nil {
			logger.Fatal().Err(err).Msg("ошибка подбора")
		}
	case "demo":
		if err := runDemo(repo, aiClient, config, logger); err != nil {
			logger.Fatal().Err(err).Msg("ошибка демонстрации")
		}
	case "serve":
		if err := runServer(repo, aiClient, config, logger); err != nil {
			logger.Fatal().Err(err).Msg("ошибка HTTP сервера")
		}
	default:
		fmt.Println("Сервис DateDine. Используйте флаги для выполнения действий:")
		fmt.Println("  -action=import -csv=restaurants.csv    # Импортировать корпус ресторанов")
		fmt.Println("  -action=match -vibe1=... -vibe2=...    # Подобрать ресторан для пары")
		fmt.Println("  -action=demo                           # Запустить демо-сессию")
		fmt.Println("  -action=serve                          # Запустить HTTP сервер")
	}
}

// newLogger настраивает логгер с уровнем из конфигурации
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// matchOptions собирает параметры алгоритма из конфигурации
func matchOptions(config ai.Config) application.Options {
	opts := application.DefaultOptions()
	if config.Matching.TopK > 0 {
		opts.TopK = config.Matching.TopK
	}
	if config.Matching.MinDatingTime > 0 {
		opts.MinDatingTime = config.Matching.MinDatingTime
	}
	if config.Matching.MaxResults > 0 {
		opts.MaxResults = config.Matching.MaxResults
	}
	if config.Matching.DefaultCity != "" {
		opts.DefaultCity = config.Matching.DefaultCity
	}
	return opts
}

// handleImport загружает корпус ресторанов из CSV
func handleImport(repo *infrastructure.SQLiteRestaurantRepository, embedder domain.Embedder, csvPath string) error {
	fmt.Printf("Импортируем корпус из %s...\n", csvPath)

	count, err := repo.ImportCSV(csvPath, embedder)
	if err != nil {
		return fmt.Errorf("ошибка импорта: %w", err)
	}

	fmt.Printf("Импортировано ресторанов: %d\n", count)
	return nil
}

// handleMatch выполняет один подбор и печатает результат
func handleMatch(
	repo *infrastructure.SQLiteRestaurantRepository,
	embedder domain.Embedder,
	config ai.Config,
	logger zerolog.Logger,
	req domain.MatchRequest,
) error {
	resolver, err := routing.NewClient(config, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента маршрутизации: %w", err)
	}

	service, err := application.NewDateMatchService(repo, embedder, resolver, matchOptions(config), logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации сервиса: %w", err)
	}

	result, err := service.Match(context.Background(), req)
	if err != nil {
		return fmt.Errorf("ошибка подбора: %w", err)
	}

	printResult(result)
	return nil
}

// runServer запускает HTTP сервер подбора
func runServer(
	repo *infrastructure.SQLiteRestaurantRepository,
	embedder domain.Embedder,
	config ai.Config,
	logger zerolog.Logger,
) error {
	resolver, err := routing.NewClient(config, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента маршрутизации: %w", err)
	}

	service, err := application.NewDateMatchService(repo, embedder, resolver, matchOptions(config), logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации сервиса: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewServer(service, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("HTTP сервер запущен")
	return server.ListenAndServe()
}

// runDemo запускает демо-сессию: при пустой базе наполняет ее тестовым
// корпусом и выполняет один подбор со стандартными параметрами
func runDemo(
	repo *infrastructure.SQLiteRestaurantRepository,
	embedder domain.Embedder,
	config ai.Config,
	logger zerolog.Logger,
) error {
	fmt.Println("=== Демонстрация сервиса DateDine ===")

	restaurants, _, err := repo.GetAllRestaurants()
	if err != nil {
		return fmt.Errorf("не удалось получить существующие рестораны: %w", err)
	}

	if len(restaurants) == 0 {
		demo := []domain.Restaurant{
			{
				ID:       uuid.NewString(),
				Name:     "Bayview Bistro",
				Review:   "Quiet candlelit tables, soft jazz and a view of the bay. Perfect for a slow romantic dinner.",
				Location: "Bandra West, Mumbai",
			},
			{
				ID:       uuid.NewString(),
				Name:     "Skyline Terrace",
				Review:   "Rooftop seating with city lights, great filter coffee and desserts for a romantic evening.",
				Location: "Lower Parel, Mumbai",
			},
			{
				ID:       uuid.NewString(),
				Name:     "Masala Junction",
				Review:   "Loud, busy and family friendly, famous for spicy street style chaat and quick service.",
				Location: "Andheri East, Mumbai",
			},
		}

		fmt.Println("База пуста, векторизуем тестовый корпус...")

		reviews := make([]string, len(demo))
		for i, r := range demo {
			reviews[i] = r.Review
		}
		embeddings, err := embedder.EmbedTexts(reviews)
		if err != nil {
			return fmt.Errorf("провайдер векторов недоступен (проверьте AI_API_KEY): %w", err)
		}
		for i, r := range demo {
			if err := repo.SaveRestaurant(r, embeddings[i]); err != nil {
				return fmt.Errorf("ошибка сохранения ресторана %q: %w", r.Name, err)
			}
		}
	} else {
		fmt.Printf("База данных уже содержит %d ресторанов\n", len(restaurants))
	}

	// Без ключа маршрутизации демо все равно работает: подбор вернет
	// резервный список лучших по атмосфере
	var resolver domain.TravelResolver
	resolver, err = routing.NewClient(config, logger)
	if err != nil {
		fmt.Printf("Примечание: %v. Времена в пути определяться не будут.\n", err)
		resolver = unavailableResolver{}
	}

	service, err := application.NewDateMatchService(repo, embedder, resolver, matchOptions(config), logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации сервиса: %w", err)
	}

	req := domain.MatchRequest{Users: [2]domain.Participant{
		{Vibe: "Cozy, candlelight, quiet", Origin: "Powai, Mumbai", BudgetMinutes: 120},
		{Vibe: "Rooftop, romantic, good coffee", Origin: "Dadar, Mumbai", BudgetMinutes: 120},
	}}

	fmt.Printf("\nЗапрос: %q + %q\n", req.Users[0].Vibe, req.Users[1].Vibe)

	result, err := service.Match(context.Background(), req)
	if err != nil {
		return fmt.Errorf("ошибка подбора: %w", err)
	}

	printResult(result)
	return nil
}

// printResult печатает результат подбора
func printResult(result *domain.MatchResult) {
	if len(result.Recommendations) == 0 {
		fmt.Println("Подходящих ресторанов не найдено.")
		return
	}

	if result.Fallback {
		fmt.Println("Ни один ресторан не прошел фильтр по времени. Лучшие по атмосфере:")
	} else {
		fmt.Println("Лучшие варианты с учетом времени:")
	}

	for _, rec := range result.Recommendations {
		fmt.Printf("  %s [близость %.2f]\n    %s\n", rec.Name, rec.Similarity, rec.Review)
		if !result.Fallback {
			fmt.Printf("    Время на свидание: %.0f мин, дорога туда-обратно: %.0f мин / %.0f мин\n",
				rec.EffectiveDatingTime, rec.RoundTripUser1, rec.RoundTripUser2)
		}
	}
}

// unavailableResolver заглушка для демо без ключа маршрутизации
type unavailableResolver struct{}

func (unavailableResolver) Resolve(ctx context.Context, origin, destination string) (domain.TravelEstimate, error) {
	return domain.TravelEstimate{}, fmt.Errorf("%w: клиент маршрутизации не настроен", domain.ErrUnresolvable)
}
