package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/booking"
	"barberia-backend/internal/config"
	"barberia-backend/internal/db"
	"barberia-backend/internal/models"
	"barberia-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedService struct {
	Name     string
	Price    int
	Duration int
	Category string
}

type seedUser struct {
	Username    string
	Email       string
	PasswordEnv string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	repo := booking.NewRepository(cols.Appointments, cols.Schedules, cols.DaysOff, cols.Services)

	services := []seedService{
		{Name: "Corte clásico", Price: 8000, Duration: 30, Category: "Cortes"},
		{Name: "Corte & Barba", Price: 12000, Duration: 45, Category: "Cortes"},
		{Name: "Arreglo de barba", Price: 5000, Duration: 20, Category: "Barba"},
		{Name: "Afeitado con toalla caliente", Price: 7000, Duration: 30, Category: "Barba"},
		{Name: "Corte infantil", Price: 6000, Duration: 30, Category: "Cortes"},
		{Name: "Perfilado de cejas", Price: 2500, Duration: 15, Category: "Extras"},
	}

	for _, svc := range services {
		err := repo.UpsertService(ctx, models.Service{
			ID:              utils.Slugify(svc.Name),
			Name:            svc.Name,
			Price:           svc.Price,
			DurationMinutes: svc.Duration,
			Category:        svc.Category,
			Active:          true,
		})
		if err != nil {
			log.Fatalf("seed error for %s: %v", svc.Name, err)
		}
	}

	for _, barber := range splitList(envOrDefault("SEED_BARBEROS", "Héctor,Ana")) {
		if err := seedSchedule(ctx, repo, barber); err != nil {
			log.Fatalf("seed schedule error for %s: %v", barber, err)
		}
	}

	adminUsers := []seedUser{
		{
			Username:    envOrDefault("ADMIN_USER", "admin"),
			Email:       envOrDefault("ADMIN_EMAIL", ""),
			PasswordEnv: "ADMIN_PASSWORD",
		},
		{
			Username:    envOrDefault("ADMIN_USER_2", "admin2"),
			Email:       envOrDefault("ADMIN_EMAIL_2", ""),
			PasswordEnv: "ADMIN_PASSWORD_2",
		},
	}

	for _, admin := range adminUsers {
		password := os.Getenv(admin.PasswordEnv)
		if password == "" {
			log.Printf("seed admin: %s missing, skipping (%s)", admin.Username, admin.PasswordEnv)
			continue
		}
		if err := seedAdminUser(ctx, cols, admin.Username, admin.Email, password, cfg.Timezone); err != nil {
			log.Fatalf("seed admin error for %s: %v", admin.Username, err)
		}
	}

	log.Println("seed completed")
}

// seedSchedule gives a barber Tuesday to Saturday 10:00-20:00 unless rows
// already exist for them.
func seedSchedule(ctx context.Context, repo *booking.MongoRepository, barber string) error {
	existing, err := repo.ListSchedules(ctx, barber)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Printf("seed schedule: %s already has %d rows, skipping", barber, len(existing))
		return nil
	}
	for day := time.Tuesday; day <= time.Saturday; day++ {
		row := models.Schedule{
			ID:         primitive.NewObjectID().Hex(),
			Specialist: barber,
			Weekday:    int(day),
			Start:      "10:00",
			End:        "20:00",
			Active:     true,
		}
		if err := repo.InsertSchedule(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func seedAdminUser(ctx context.Context, cols *db.Collections, username, email, password string, loc *time.Location) error {
	if cols == nil || cols.Users == nil {
		return nil
	}
	username = models.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	filter := bson.M{"username": username}
	set := bson.M{
		"passwordHash": hash,
		"role":         models.RoleAdmin,
		"permissions":  models.DefaultPermissions(models.RoleAdmin),
		"active":       true,
		"updatedAt":    now,
	}
	if email != "" {
		set["email"] = email
	}
	setOnInsert := bson.M{
		"_id":       primitive.NewObjectID().Hex(),
		"username":  username,
		"name":      username,
		"createdAt": now,
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": setOnInsert,
	}
	_, err = cols.Users.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
