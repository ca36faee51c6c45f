package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/schedule-engine/internal/db"
	"github.com/careslot/schedule-engine/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedSchedules(context.Background(), pool, 40, 200); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}

	log.Println("seed complete")
}

// seedSchedules spreads count schedules over a pool of fake doctor ids.
// Doctor and hospital records live in the upstream CRUD service, so only
// their UUIDs appear here.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, doctors, count int) error {
	log.Printf("seeding %d schedules across %d doctors", count, doctors)

	timezones := []string{
		"UTC",
		"Europe/Berlin",
		"Asia/Kolkata",
		"America/New_York",
		"Asia/Singapore",
	}
	durations := []int{15, 20, 30, 45, 60}

	doctorIDs := make([]uuid.UUID, doctors)
	for i := range doctorIDs {
		doctorIDs[i] = uuid.New()
	}
	hospitalID := uuid.New()

	repo := schedule.NewPgRepository(pool)
	today := schedule.DateOnly(time.Now())

	for i := 0; i < count; i++ {
		doctorID := doctorIDs[gofakeit.Number(0, doctors-1)]
		startHour := gofakeit.Number(7, 16)
		startMin := startHour * 60
		endMin := startMin + 60*gofakeit.Number(1, 4)

		start := today.AddDate(0, 0, gofakeit.Number(1, 21))
		sch := &schedule.Schedule{
			ID:          uuid.New(),
			DoctorID:    doctorID,
			HospitalID:  hospitalID,
			Name:        gofakeit.JobTitle() + " hours",
			StartMin:    startMin,
			EndMin:      endMin,
			Timezone:    timezones[gofakeit.Number(0, len(timezones)-1)],
			DurationMin: durations[gofakeit.Number(0, len(durations)-1)],
			Status:      schedule.StatusPending,
		}

		switch gofakeit.Number(0, 2) {
		case 0:
			sch.Type = schedule.TypeOneTime
			sch.StartDate = &start
		case 1:
			sch.Type = schedule.TypeTemporary
			end := start.AddDate(0, 0, gofakeit.Number(14, 60))
			sch.StartDate = &start
			sch.EndDate = &end
			sch.DaysOfWeek = randomWeekdays()
		default:
			sch.Type = schedule.TypeRecurring
			sch.StartDate = &start
			sch.DaysOfWeek = randomWeekdays()
		}

		if err := repo.CreateSchedule(ctx, sch); err != nil {
			return err
		}

		if i > 0 && i%50 == 0 {
			log.Printf("schedules seeded: %d/%d", i, count)
		}
	}

	log.Println("schedules seeded")
	return nil
}

func randomWeekdays() []int {
	n := gofakeit.Number(1, 4)
	seen := make(map[int]struct{}, n)
	days := make([]int, 0, n)
	for len(days) < n {
		d := gofakeit.Number(0, 6)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	return days
}
