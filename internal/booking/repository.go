package booking

import (
	"context"
	"time"

	"barberia-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ListFilter struct {
	Date       string
	From       string
	To         string
	Specialist string
	Status     string
}

// AppointmentRepository persists appointments. Lookups of a missing record
// return mongo.ErrNoDocuments.
type AppointmentRepository interface {
	Insert(ctx context.Context, a models.Appointment) error
	Get(ctx context.Context, id string) (models.Appointment, error)
	ListDay(ctx context.Context, specialist, date string) ([]models.Appointment, error)
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.Appointment, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	SetStatus(ctx context.Context, id, status string, now time.Time) (models.Appointment, error)
	PendingReminders(ctx context.Context, date string) ([]models.Appointment, error)
	MarkReminderSent(ctx context.Context, id string, now time.Time) error
}

type CalendarRepository interface {
	Schedules(ctx context.Context, specialist string, weekday int) ([]models.Schedule, error)
	ListSchedules(ctx context.Context, specialist string) ([]models.Schedule, error)
	GetSchedule(ctx context.Context, id string) (models.Schedule, error)
	InsertSchedule(ctx context.Context, s models.Schedule) error
	DeleteSchedule(ctx context.Context, id string) (models.Schedule, error)
	DaysOff(ctx context.Context, date string) ([]models.DayOff, error)
	ListDaysOff(ctx context.Context, from string) ([]models.DayOff, error)
	GetDayOff(ctx context.Context, id string) (models.DayOff, error)
	InsertDayOff(ctx context.Context, d models.DayOff) error
	DeleteDayOff(ctx context.Context, id string) (models.DayOff, error)
}

type CatalogRepository interface {
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)
	GetService(ctx context.Context, id string) (models.Service, error)
	UpsertService(ctx context.Context, s models.Service) error
}

type MongoRepository struct {
	appointments *mongo.Collection
	schedules    *mongo.Collection
	daysOff      *mongo.Collection
	services     *mongo.Collection
}

func NewRepository(appointments, schedules, daysOff, services *mongo.Collection) *MongoRepository {
	return &MongoRepository{
		appointments: appointments,
		schedules:    schedules,
		daysOff:      daysOff,
		services:     services,
	}
}

func (r *MongoRepository) Insert(ctx context.Context, a models.Appointment) error {
	_, err := r.appointments.InsertOne(ctx, a)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (models.Appointment, error) {
	var a models.Appointment
	if err := r.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return models.Appointment{}, err
	}
	return models.NormalizeAppointment(a), nil
}

func (r *MongoRepository) ListDay(ctx context.Context, specialist, date string) ([]models.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})
	return r.findAppointments(ctx, bson.M{"specialist": specialist, "date": date}, opts)
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.Appointment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "startTime", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)
	return r.findAppointments(ctx, appointmentFilter(filter), opts)
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.appointments.CountDocuments(ctx, appointmentFilter(filter))
}

func (r *MongoRepository) SetStatus(ctx context.Context, id, status string, now time.Time) (models.Appointment, error) {
	set := bson.M{
		"status":    status,
		"updatedAt": now,
	}
	if status == models.StatusCancelled {
		set["cancelledAt"] = now
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Appointment
	if err := r.appointments.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return models.Appointment{}, err
	}
	return models.NormalizeAppointment(updated), nil
}

func (r *MongoRepository) PendingReminders(ctx context.Context, date string) ([]models.Appointment, error) {
	query := bson.M{
		"date":           date,
		"status":         models.StatusConfirmed,
		"reminderSentAt": bson.M{"$exists": false},
	}
	return r.findAppointments(ctx, query, options.Find())
}

func (r *MongoRepository) MarkReminderSent(ctx context.Context, id string, now time.Time) error {
	_, err := r.appointments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reminderSentAt": now}})
	return err
}

func (r *MongoRepository) findAppointments(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Appointment, error) {
	cursor, err := r.appointments.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Appointment, 0)
	for cursor.Next(ctx) {
		var a models.Appointment
		if err := cursor.Decode(&a); err != nil {
			return nil, err
		}
		items = append(items, models.NormalizeAppointment(a))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func appointmentFilter(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Date != "" {
		query["date"] = filter.Date
	} else if filter.From != "" || filter.To != "" {
		rng := bson.M{}
		if filter.From != "" {
			rng["$gte"] = filter.From
		}
		if filter.To != "" {
			rng["$lte"] = filter.To
		}
		query["date"] = rng
	}
	if filter.Specialist != "" {
		query["specialist"] = filter.Specialist
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}

func (r *MongoRepository) Schedules(ctx context.Context, specialist string, weekday int) ([]models.Schedule, error) {
	query := bson.M{"specialist": specialist, "weekday": weekday, "active": true}
	return r.findSchedules(ctx, query)
}

func (r *MongoRepository) ListSchedules(ctx context.Context, specialist string) ([]models.Schedule, error) {
	query := bson.M{}
	if specialist != "" {
		query["specialist"] = specialist
	}
	return r.findSchedules(ctx, query)
}

func (r *MongoRepository) findSchedules(ctx context.Context, query bson.M) ([]models.Schedule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "specialist", Value: 1}, {Key: "weekday", Value: 1}, {Key: "start", Value: 1}})
	cursor, err := r.schedules.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Schedule, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) GetSchedule(ctx context.Context, id string) (models.Schedule, error) {
	var row models.Schedule
	if err := r.schedules.FindOne(ctx, bson.M{"_id": id}).Decode(&row); err != nil {
		return models.Schedule{}, err
	}
	return row, nil
}

func (r *MongoRepository) InsertSchedule(ctx context.Context, s models.Schedule) error {
	_, err := r.schedules.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) DeleteSchedule(ctx context.Context, id string) (models.Schedule, error) {
	var deleted models.Schedule
	if err := r.schedules.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted); err != nil {
		return models.Schedule{}, err
	}
	return deleted, nil
}

func (r *MongoRepository) DaysOff(ctx context.Context, date string) ([]models.DayOff, error) {
	return r.findDaysOff(ctx, bson.M{"date": date, "active": true})
}

func (r *MongoRepository) ListDaysOff(ctx context.Context, from string) ([]models.DayOff, error) {
	query := bson.M{}
	if from != "" {
		query["date"] = bson.M{"$gte": from}
	}
	return r.findDaysOff(ctx, query)
}

func (r *MongoRepository) findDaysOff(ctx context.Context, query bson.M) ([]models.DayOff, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.daysOff.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.DayOff, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) GetDayOff(ctx context.Context, id string) (models.DayOff, error) {
	var d models.DayOff
	if err := r.daysOff.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return models.DayOff{}, err
	}
	return d, nil
}

func (r *MongoRepository) InsertDayOff(ctx context.Context, d models.DayOff) error {
	_, err := r.daysOff.InsertOne(ctx, d)
	return err
}

func (r *MongoRepository) DeleteDayOff(ctx context.Context, id string) (models.DayOff, error) {
	var deleted models.DayOff
	if err := r.daysOff.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted); err != nil {
		return models.DayOff{}, err
	}
	return deleted, nil
}

func (r *MongoRepository) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	query := bson.M{}
	if activeOnly {
		query["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := r.services.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Service, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) GetService(ctx context.Context, id string) (models.Service, error) {
	var s models.Service
	if err := r.services.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return models.Service{}, err
	}
	return s, nil
}

func (r *MongoRepository) UpsertService(ctx context.Context, s models.Service) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.services.ReplaceOne(ctx, bson.M{"_id": s.ID}, s, opts)
	return err
}
