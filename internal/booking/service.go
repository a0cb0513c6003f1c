package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"barberia-backend/internal/cache"
	"barberia-backend/internal/models"
	"barberia-backend/internal/schedule"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MaxLookaheadDays bounds the search for the next date with a free slot.
const MaxLookaheadDays = 30

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrMissingSpecialist = errors.New("missing specialist")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidTime       = errors.New("invalid time")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidRange      = errors.New("invalid range")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrDateInPast        = errors.New("date in the past")
	ErrSlotPassed        = errors.New("slot already passed")
	ErrSlotNotAllowed    = errors.New("slot not allowed")
	ErrSlotTaken         = errors.New("slot already taken")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoAvailability    = errors.New("no availability")
)

// Draft is a booking request before the service resolves duration and price.
type Draft struct {
	ClientName  string
	ClientEmail string
	ClientPhone string
	ServiceID   string
	Specialist  string
	Date        string
	StartTime   string
	Notes       string
}

type BusyInterval struct {
	Start    string `json:"inicio"`
	End      string `json:"fin"`
	Duration int    `json:"duracion"`
}

type Bucket struct {
	Count   int `json:"cantidad"`
	Revenue int `json:"ingresos"`
}

type Stats struct {
	From         string            `json:"desde"`
	To           string            `json:"hasta"`
	Total        int               `json:"total"`
	Revenue      int               `json:"ingresos"`
	ByStatus     map[string]int    `json:"porEstado"`
	BySpecialist map[string]Bucket `json:"porEspecialista"`
	ByService    map[string]Bucket `json:"porServicio"`
}

type Options struct {
	Location    *time.Location
	StepMinutes int
	Cache       cache.Cache
	CacheTTL    time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

type Service struct {
	appts    AppointmentRepository
	calendar CalendarRepository
	catalog  CatalogRepository
	cache    cache.Cache
	cacheTTL time.Duration
	// cacheGen counts invalidations; a fill computed under an older
	// generation is not stored.
	cacheMu  sync.RWMutex
	cacheGen uint64
	location *time.Location
	step     int
	locks    *KeyedMutex
	log      *slog.Logger
	now      func() time.Time
}

func NewService(appts AppointmentRepository, calendar CalendarRepository, catalog CatalogRepository, opts Options) *Service {
	s := &Service{
		appts:    appts,
		calendar: calendar,
		catalog:  catalog,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		location: opts.Location,
		step:     opts.StepMinutes,
		locks:    NewKeyedMutex(),
		log:      opts.Logger,
		now:      opts.Now,
	}
	if s.cache == nil {
		s.cache = cache.NewNoop()
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.step <= 0 {
		s.step = schedule.DefaultStepMinutes
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.location
}

// ResolveDuration prefers the duration of the given service over an explicit value.
func (s *Service) ResolveDuration(ctx context.Context, serviceID string, duration int) (int, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		if duration <= 0 {
			return 0, ErrInvalidDuration
		}
		return duration, nil
	}
	svc, err := s.service(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	return svc.DurationMinutes, nil
}

// AvailableSlots returns the bookable start times for a specialist on a date.
func (s *Service) AvailableSlots(ctx context.Context, specialist, date string, duration int) ([]string, error) {
	specialist = strings.TrimSpace(specialist)
	if specialist == "" {
		return nil, ErrMissingSpecialist
	}
	day, err := schedule.ParseDate(date, s.location)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	now := s.now()
	past, err := schedule.IsDatePast(date, s.location, now)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if past {
		return nil, ErrDateInPast
	}

	slots, err := s.cachedSlots(ctx, specialist, date, day, duration)
	if err != nil {
		return nil, err
	}

	if schedule.IsToday(date, s.location, now) {
		slots, err = schedule.FilterPastSlots(date, slots, s.location, now)
		if err != nil {
			return nil, err
		}
	}
	return slots, nil
}

func (s *Service) cachedSlots(ctx context.Context, specialist, date string, day time.Time, duration int) ([]string, error) {
	key := slotKey(specialist, date, duration)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("availability cache: get failed", slog.String("key", key), slog.String("error", err.Error()))
	} else if ok {
		var cached []string
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	gen := s.generation()
	loaded, err := s.loadDay(ctx, specialist, date, day)
	if err != nil {
		return nil, err
	}
	slots, err := schedule.AvailableSlots(loaded, duration, s.step)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(slots); err == nil {
		s.storeSlots(ctx, key, raw, gen)
	}
	return slots, nil
}

func (s *Service) generation() uint64 {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cacheGen
}

// storeSlots writes a cache fill unless an invalidation ran since gen was read.
// The read lock is held across the write so a concurrent invalidate either
// sees the entry and deletes it or bumps the generation first.
func (s *Service) storeSlots(ctx context.Context, key string, raw []byte, gen uint64) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if s.cacheGen != gen {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.log.Warn("availability cache: set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// NextAvailable scans forward from the given date and returns the first day
// with at least one free slot.
func (s *Service) NextAvailable(ctx context.Context, specialist, from string, duration int) (string, []string, error) {
	now := s.now().In(s.location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	if strings.TrimSpace(from) != "" {
		parsed, err := schedule.ParseDate(from, s.location)
		if err != nil {
			return "", nil, ErrInvalidDate
		}
		if parsed.After(start) {
			start = parsed
		}
	}

	for i := 0; i < MaxLookaheadDays; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		slots, err := s.AvailableSlots(ctx, specialist, date, duration)
		if err != nil {
			return "", nil, err
		}
		if len(slots) > 0 {
			return date, slots, nil
		}
	}
	return "", nil, ErrNoAvailability
}

// Book checks the requested interval against the store and inserts the
// appointment. Check and insert are serialized per specialist and date.
func (s *Service) Book(ctx context.Context, d Draft) (models.Appointment, error) {
	d.Specialist = strings.TrimSpace(d.Specialist)
	d.Date = strings.TrimSpace(d.Date)
	d.StartTime = strings.TrimSpace(d.StartTime)
	if d.Specialist == "" {
		return models.Appointment{}, ErrMissingSpecialist
	}

	svc, err := s.service(ctx, d.ServiceID)
	if err != nil {
		return models.Appointment{}, err
	}
	if svc.DurationMinutes <= 0 {
		return models.Appointment{}, ErrInvalidDuration
	}

	day, err := schedule.ParseDate(d.Date, s.location)
	if err != nil {
		return models.Appointment{}, ErrInvalidDate
	}
	start, err := schedule.ParseClockToMinutes(d.StartTime)
	if err != nil {
		return models.Appointment{}, ErrInvalidTime
	}

	now := s.now()
	if past, _ := schedule.IsDatePast(d.Date, s.location, now); past {
		return models.Appointment{}, ErrDateInPast
	}
	if passed, _ := schedule.IsSlotPast(d.Date, d.StartTime, s.location, now); passed {
		return models.Appointment{}, ErrSlotPassed
	}

	unlock := s.locks.Lock(lockKey(d.Specialist, d.Date))
	defer unlock()

	loaded, err := s.loadDay(ctx, d.Specialist, d.Date, day)
	if err != nil {
		return models.Appointment{}, err
	}
	fits, err := schedule.Fits(loaded, start, svc.DurationMinutes, s.step)
	if err != nil {
		return models.Appointment{}, err
	}
	if !fits {
		return models.Appointment{}, ErrSlotNotAllowed
	}
	current := schedule.Interval{Start: start, End: start + svc.DurationMinutes}
	for _, booked := range loaded.Booked {
		if schedule.Overlaps(current, booked) {
			return models.Appointment{}, ErrSlotTaken
		}
	}

	stamp := now.In(s.location)
	appointment := models.Appointment{
		ID:          primitive.NewObjectID().Hex(),
		ClientName:  strings.TrimSpace(d.ClientName),
		ClientEmail: strings.TrimSpace(d.ClientEmail),
		ClientPhone: strings.TrimSpace(d.ClientPhone),
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Date:        d.Date,
		StartTime:   schedule.MinutesToClock(current.Start),
		EndTime:     schedule.MinutesToClock(current.End),
		Duration:    svc.DurationMinutes,
		Specialist:  d.Specialist,
		Status:      models.StatusConfirmed,
		Price:       svc.EffectivePrice(),
		Notes:       strings.TrimSpace(d.Notes),
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
	}
	if err := s.appts.Insert(ctx, appointment); err != nil {
		return models.Appointment{}, err
	}

	s.invalidateDay(ctx, appointment.Specialist, appointment.Date)
	return appointment, nil
}

// Cancel marks an appointment as cancelled. Cancelling twice succeeds and
// returns the already cancelled record.
func (s *Service) Cancel(ctx context.Context, id string) (models.Appointment, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return models.Appointment{}, err
	}
	if current.Status == models.StatusCancelled {
		return current, nil
	}

	unlock := s.locks.Lock(lockKey(current.Specialist, current.Date))
	defer unlock()

	updated, err := s.appts.SetStatus(ctx, current.ID, models.StatusCancelled, s.now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Appointment{}, ErrNotFound
		}
		return models.Appointment{}, err
	}
	s.invalidateDay(ctx, updated.Specialist, updated.Date)
	return updated, nil
}

// UpdateStatus moves an appointment between staff statuses. A cancelled
// appointment cannot be reopened.
func (s *Service) UpdateStatus(ctx context.Context, id, rawStatus string) (models.Appointment, error) {
	status, ok := models.NormalizeStatus(rawStatus)
	if !ok {
		return models.Appointment{}, ErrInvalidStatus
	}
	if status == models.StatusCancelled {
		return s.Cancel(ctx, id)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return models.Appointment{}, err
	}
	if current.Status == models.StatusCancelled {
		return models.Appointment{}, ErrInvalidTransition
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.appts.SetStatus(ctx, current.ID, status, s.now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Appointment{}, ErrNotFound
		}
		return models.Appointment{}, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Appointment{}, ErrNotFound
	}
	a, err := s.appts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Appointment{}, ErrNotFound
		}
		return models.Appointment{}, err
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]models.Appointment, int64, error) {
	filter.Specialist = strings.TrimSpace(filter.Specialist)
	if filter.Status != "" {
		status, ok := models.NormalizeStatus(filter.Status)
		if !ok {
			return nil, 0, ErrInvalidStatus
		}
		filter.Status = status
	}
	for _, d := range []string{filter.Date, filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := schedule.ParseDate(d, s.location); err != nil {
			return nil, 0, ErrInvalidDate
		}
	}

	items, err := s.appts.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.appts.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Busy lists the occupied intervals of a day without any client data.
func (s *Service) Busy(ctx context.Context, specialist, date string) ([]BusyInterval, error) {
	specialist = strings.TrimSpace(specialist)
	if specialist == "" {
		return nil, ErrMissingSpecialist
	}
	if _, err := schedule.ParseDate(date, s.location); err != nil {
		return nil, ErrInvalidDate
	}
	appts, err := s.appts.ListDay(ctx, specialist, date)
	if err != nil {
		return nil, err
	}
	busy := make([]BusyInterval, 0, len(appts))
	for _, a := range appts {
		if !a.BlocksSlot() {
			continue
		}
		interval, ok := appointmentInterval(a)
		if !ok {
			continue
		}
		busy = append(busy, BusyInterval{
			Start:    schedule.MinutesToClock(interval.Start),
			End:      schedule.MinutesToClock(interval.End),
			Duration: interval.End - interval.Start,
		})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })
	return busy, nil
}

// Stats aggregates the appointments between two dates, both inclusive.
// Totals and revenue skip cancelled appointments.
// Stats aggregates a date range. A non-empty specialist limits it to one chair.
func (s *Service) Stats(ctx context.Context, from, to, specialist string) (Stats, error) {
	if _, err := schedule.ParseDate(from, s.location); err != nil {
		return Stats{}, ErrInvalidDate
	}
	if _, err := schedule.ParseDate(to, s.location); err != nil {
		return Stats{}, ErrInvalidDate
	}
	if from > to {
		return Stats{}, ErrInvalidRange
	}

	items, err := s.appts.List(ctx, ListFilter{From: from, To: to, Specialist: strings.TrimSpace(specialist)}, 0, 0)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		From:         from,
		To:           to,
		ByStatus:     make(map[string]int),
		BySpecialist: make(map[string]Bucket),
		ByService:    make(map[string]Bucket),
	}
	for _, a := range items {
		stats.ByStatus[a.Status]++
		if !a.BlocksSlot() {
			continue
		}
		stats.Total++
		stats.Revenue += a.Price
		sp := stats.BySpecialist[a.Specialist]
		sp.Count++
		sp.Revenue += a.Price
		stats.BySpecialist[a.Specialist] = sp

		name := a.ServiceName
		if name == "" {
			name = a.ServiceID
		}
		sv := stats.ByService[name]
		sv.Count++
		sv.Revenue += a.Price
		stats.ByService[name] = sv
	}
	return stats, nil
}

// DueReminders returns confirmed appointments of the day after now that have
// not been reminded yet.
func (s *Service) DueReminders(ctx context.Context) ([]models.Appointment, error) {
	tomorrow := s.now().In(s.location).AddDate(0, 0, 1).Format("2006-01-02")
	return s.appts.PendingReminders(ctx, tomorrow)
}

func (s *Service) MarkReminded(ctx context.Context, id string) error {
	return s.appts.MarkReminderSent(ctx, id, s.now().In(s.location))
}

func (s *Service) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	return s.catalog.ListServices(ctx, activeOnly)
}

func (s *Service) GetService(ctx context.Context, id string) (models.Service, error) {
	return s.service(ctx, id)
}

func (s *Service) service(ctx context.Context, id string) (models.Service, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Service{}, ErrServiceNotFound
	}
	svc, err := s.catalog.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Service{}, ErrServiceNotFound
		}
		return models.Service{}, err
	}
	if !svc.Active {
		return models.Service{}, ErrServiceNotFound
	}
	return svc, nil
}

// loadDay gathers the schedule windows, days off and blocking appointments of
// one specialist on one date.
func (s *Service) loadDay(ctx context.Context, specialist, date string, day time.Time) (schedule.Day, error) {
	rows, err := s.calendar.Schedules(ctx, specialist, int(day.Weekday()))
	if err != nil {
		return schedule.Day{}, fmt.Errorf("load schedules: %w", err)
	}
	if len(rows) == 0 {
		return schedule.Day{}, nil
	}
	offs, err := s.calendar.DaysOff(ctx, date)
	if err != nil {
		return schedule.Day{}, fmt.Errorf("load days off: %w", err)
	}

	loaded, skipped := DayFrom(specialist, int(day.Weekday()), rows, offs)
	for _, id := range skipped {
		s.log.Warn("availability: malformed schedule row", slog.String("schedule_id", id))
	}
	if len(loaded.Windows) == 0 || loaded.Closed {
		return loaded, nil
	}

	appts, err := s.appts.ListDay(ctx, specialist, date)
	if err != nil {
		return schedule.Day{}, fmt.Errorf("load appointments: %w", err)
	}
	for _, a := range appts {
		if !a.BlocksSlot() {
			continue
		}
		interval, ok := appointmentInterval(a)
		if !ok {
			s.log.Warn("availability: malformed appointment", slog.String("appointment_id", a.ID))
			continue
		}
		loaded.Booked = append(loaded.Booked, interval)
	}
	return loaded, nil
}

// DayFrom builds the working windows and days off of one specialist on one
// weekday. Rows of other specialists or weekdays are ignored. It returns the
// ids of schedule rows that could not be parsed. An unreadable partial day
// off closes the whole day.
func DayFrom(specialist string, weekday int, rows []models.Schedule, offs []models.DayOff) (schedule.Day, []string) {
	var day schedule.Day
	var skipped []string
	for _, row := range rows {
		if !row.Active || row.Specialist != specialist || row.Weekday != weekday {
			continue
		}
		window, err := schedule.ParseRange(row.Start, row.End)
		if err != nil {
			skipped = append(skipped, row.ID)
			continue
		}
		day.Windows = append(day.Windows, window)
	}
	if len(day.Windows) == 0 {
		return day, skipped
	}

	for _, off := range offs {
		if !off.Active || !off.AppliesTo(specialist) {
			continue
		}
		if off.AllDay {
			day.Closed = true
			continue
		}
		interval, err := schedule.ParseRange(off.Start, off.End)
		if err != nil {
			day.Closed = true
			continue
		}
		day.Off = append(day.Off, interval)
	}
	return day, skipped
}

func appointmentInterval(a models.Appointment) (schedule.Interval, bool) {
	start, err := schedule.ParseClockToMinutes(a.StartTime)
	if err != nil {
		return schedule.Interval{}, false
	}
	duration := a.Duration
	if duration <= 0 {
		end, err := schedule.ParseClockToMinutes(a.EndTime)
		if err != nil || end <= start {
			return schedule.Interval{}, false
		}
		duration = end - start
	}
	return schedule.Interval{Start: start, End: start + duration}, true
}

func (s *Service) invalidateDay(ctx context.Context, specialist, date string) {
	s.invalidate(ctx, "slots:"+specialist+":"+date+":")
}

func (s *Service) invalidate(ctx context.Context, prefix string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
		s.log.Warn("availability cache: invalidate failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
	}
}

func slotKey(specialist, date string, duration int) string {
	return fmt.Sprintf("slots:%s:%s:%d", specialist, date, duration)
}

func lockKey(specialist, date string) string {
	return specialist + "|" + date
}
