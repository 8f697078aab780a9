// Package memory provides in-process implementations of the store
// interfaces for tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/store"
)

// ── Users ────────────────────────────────────────────────

// Users mirrors PostgresStore, including its unique constraints.
type Users struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	order []string
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]*models.User)}
}

// column limits of the users table
var userColumns = []struct {
	name string
	max  int
	get  func(*models.User) string
}{
	{"firstname", 100, func(u *models.User) string { return u.FirstName }},
	{"lastname", 100, func(u *models.User) string { return u.LastName }},
	{"username", 50, func(u *models.User) string { return u.Username }},
	{"email", 255, func(u *models.User) string { return u.Email }},
	{"password", 255, func(u *models.User) string { return u.Password }},
	{"phone", 32, func(u *models.User) string { return u.Phone }},
}

func checkColumns(u *models.User) error {
	for _, c := range userColumns {
		if utf8.RuneCountInString(c.get(u)) > c.max {
			return fmt.Errorf("%w: %s exceeds %d characters", store.ErrValueTooLong, c.name, c.max)
		}
	}
	return nil
}

func (s *Users) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if err := checkColumns(u); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.byID {
		switch {
		case other.Username == u.Username:
			return nil, &store.DuplicateError{Field: "username"}
		case other.Email == u.Email:
			return nil, &store.DuplicateError{Field: "email"}
		case other.Phone == u.Phone:
			return nil, &store.DuplicateError{Field: "phone"}
		}
	}
	c := *u
	c.ID = uuid.NewString()
	if c.Role == "" {
		c.Role = models.RoleUser
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	s.byID[c.ID] = &c
	s.order = append(s.order, c.ID)
	out := c
	return &out, nil
}

func (s *Users) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Users) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *Users) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *Users) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *Users) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	seen := make(map[string]bool)
	for _, id := range ids {
		if u, ok := s.byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *u)
		}
	}
	return out, nil
}

// ListUsers returns users newest first.
func (s *Users) ListUsers(_ context.Context, limit, offset int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for i := len(s.order) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.byID[s.order[i]])
	}
	return out, nil
}

func (s *Users) CountUsers(context.Context) (total, banned int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		total++
		if u.IsBanned {
			banned++
		}
	}
	return total, banned, nil
}

func (s *Users) update(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Users) SetRefreshToken(_ context.Context, id, token string) error {
	return s.update(id, func(u *models.User) { u.RefreshToken = token })
}

func (s *Users) SetProfilePicURL(_ context.Context, id, url string) error {
	return s.update(id, func(u *models.User) { u.ProfilePicURL = url })
}

func (s *Users) SetPassword(_ context.Context, id, hashed string) error {
	return s.update(id, func(u *models.User) { u.Password = hashed })
}

func (s *Users) SetBanned(_ context.Context, id string, banned bool) error {
	return s.update(id, func(u *models.User) { u.IsBanned = banned })
}

func (s *Users) SetRole(_ context.Context, id, role string) error {
	return s.update(id, func(u *models.User) { u.Role = role })
}

func (s *Users) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	next := models.User{}
	if req.FirstName != nil {
		next.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		next.LastName = *req.LastName
	}
	if req.Phone != nil {
		next.Phone = *req.Phone
	}
	if err := checkColumns(&next); err != nil {
		return nil, err
	}
	if req.Phone != nil {
		if other, err := s.find(func(u *models.User) bool { return u.Phone == *req.Phone && u.ID != id }); err == nil && other != nil {
			return nil, &store.DuplicateError{Field: "phone"}
		}
	}
	err := s.update(id, func(u *models.User) {
		if req.FirstName != nil {
			u.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			u.LastName = *req.LastName
		}
		if req.Phone != nil {
			u.Phone = *req.Phone
		}
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// ── Documents ────────────────────────────────────────────

// Documents mirrors MongoStore for questions, answers and notifications.
type Documents struct {
	mu            sync.Mutex
	questions     map[primitive.ObjectID]*models.Question
	answers       map[primitive.ObjectID]*models.Answer
	notifications []*models.Notification
	clock         time.Time
}

func NewDocuments() *Documents {
	return &Documents{
		questions: make(map[primitive.ObjectID]*models.Question),
		answers:   make(map[primitive.ObjectID]*models.Answer),
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (s *Documents) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Documents) InsertQuestion(_ context.Context, q *models.Question) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *q
	c.ID = primitive.NewObjectID()
	c.CreatedAt = s.tick()
	c.UpdatedAt = c.CreatedAt
	if c.Answers == nil {
		c.Answers = []primitive.ObjectID{}
	}
	s.questions[c.ID] = &c
	out := c
	return &out, nil
}

func (s *Documents) question(id string) (*models.Question, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	q, ok := s.questions[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return q, nil
}

func copyQuestion(q *models.Question) *models.Question {
	c := *q
	c.Answers = append([]primitive.ObjectID{}, q.Answers...)
	c.Tags = append([]string{}, q.Tags...)
	if q.AcceptedAnswer != nil {
		id := *q.AcceptedAnswer
		c.AcceptedAnswer = &id
	}
	return &c
}

func (s *Documents) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.question(id)
	if err != nil {
		return nil, err
	}
	return copyQuestion(q), nil
}

func (s *Documents) IncrementViews(_ context.Context, id string) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.question(id)
	if err != nil {
		return nil, err
	}
	q.Views++
	return copyQuestion(q), nil
}

func (s *Documents) ListQuestions(_ context.Context, f models.QuestionFilter) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(f.Search)
	var all []models.Question
	for _, q := range s.questions {
		if search != "" && !matches(q, search) {
			continue
		}
		if f.FilterBy == "answered" && len(q.Answers) == 0 ||
			f.FilterBy == "unanswered" && len(q.Answers) > 0 {
			continue
		}
		c := copyQuestion(q)
		for _, aid := range q.Answers {
			if a, ok := s.answers[aid]; ok {
				c.VoteCount += int64(a.Votes)
			}
		}
		all = append(all, *c)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch f.SortBy {
		case "oldest":
			return a.CreatedAt.Before(b.CreatedAt)
		case "votes":
			if a.VoteCount != b.VoteCount {
				return a.VoteCount > b.VoteCount
			}
		case "views":
			if a.Views != b.Views {
				return a.Views > b.Views
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	start := (f.Page - 1) * f.Limit
	if start >= len(all) {
		return nil, nil
	}
	end := min(start+f.Limit, len(all))
	return all[start:end], nil
}

func matches(q *models.Question, search string) bool {
	if strings.Contains(strings.ToLower(q.Title), search) ||
		strings.Contains(strings.ToLower(q.Description), search) {
		return true
	}
	for _, t := range q.Tags {
		if strings.Contains(strings.ToLower(t), search) {
			return true
		}
	}
	return false
}

func (s *Documents) AppendAnswer(_ context.Context, questionID, answerID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return store.ErrNotFound
	}
	q.Answers = append(q.Answers, answerID)
	return nil
}

func (s *Documents) SetAcceptedAnswer(_ context.Context, questionID, answerID primitive.ObjectID, askedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok || q.AskedBy != askedBy {
		return store.ErrNotFound
	}
	id := answerID
	q.AcceptedAnswer = &id
	return nil
}

func (s *Documents) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.question(id)
	if err != nil {
		return err
	}
	delete(s.questions, q.ID)
	for aid, a := range s.answers {
		if a.Question == q.ID {
			delete(s.answers, aid)
		}
	}
	return nil
}

func (s *Documents) CountQuestions(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.questions)), nil
}

func (s *Documents) InsertAnswer(_ context.Context, a *models.Answer) (*models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	c.ID = primitive.NewObjectID()
	c.CreatedAt = s.tick()
	c.UpdatedAt = c.CreatedAt
	if c.Upvotes == nil {
		c.Upvotes = []string{}
	}
	if c.Downvotes == nil {
		c.Downvotes = []string{}
	}
	s.answers[c.ID] = &c
	out := copyAnswer(&c)
	return out, nil
}

func copyAnswer(a *models.Answer) *models.Answer {
	c := *a
	c.Upvotes = append([]string{}, a.Upvotes...)
	c.Downvotes = append([]string{}, a.Downvotes...)
	return &c
}

func (s *Documents) GetAnswer(_ context.Context, id string) (*models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	a, ok := s.answers[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyAnswer(a), nil
}

func (s *Documents) ListAnswers(_ context.Context, questionID primitive.ObjectID) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Answer
	for _, a := range s.answers {
		if a.Question == questionID {
			out = append(out, *copyAnswer(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Documents) UpdateVotes(_ context.Context, a *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.answers[a.ID]
	if !ok || cur.Version != a.Version {
		return store.ErrVersionConflict
	}
	cur.Upvotes = append([]string{}, a.Upvotes...)
	cur.Downvotes = append([]string{}, a.Downvotes...)
	cur.Votes = a.Votes
	cur.Version++
	a.Version++
	return nil
}

func (s *Documents) DeleteAnswer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	a, ok := s.answers[oid]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.answers, oid)
	if q, ok := s.questions[a.Question]; ok {
		kept := q.Answers[:0]
		for _, aid := range q.Answers {
			if aid != oid {
				kept = append(kept, aid)
			}
		}
		q.Answers = kept
		if q.AcceptedAnswer != nil && *q.AcceptedAnswer == oid {
			q.AcceptedAnswer = nil
		}
	}
	return nil
}

func (s *Documents) CountAnswers(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.answers)), nil
}

func (s *Documents) InsertNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = s.tick()
	c := *n
	s.notifications = append(s.notifications, &c)
	return nil
}

func (s *Documents) ListNotifications(_ context.Context, recipient string, unreadOnly bool) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.Recipient == recipient && (!unreadOnly || !n.IsRead) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *Documents) MarkNotificationRead(_ context.Context, id, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID.Hex() == id && n.Recipient == recipient {
			n.IsRead = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Documents) MarkAllNotificationsRead(_ context.Context, recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, x := range s.notifications {
		if x.Recipient == recipient && !x.IsRead {
			x.IsRead = true
			n++
		}
	}
	return n, nil
}

// ── Files ────────────────────────────────────────────────

type file struct {
	data        []byte
	contentType string
}

// Files mirrors MinioStore.
type Files struct {
	mu      sync.Mutex
	objects map[string]file
	// Err, when set, is returned by Upload.
	Err error
}

func NewFiles() *Files {
	return &Files{objects: make(map[string]file)}
}

func (s *Files) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.Err != nil {
		return s.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("short upload: got %d of %d bytes", len(data), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = file{data: data, contentType: contentType}
	return nil
}

func (s *Files) Open(_ context.Context, key string) (io.ReadCloser, string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.objects[key]
	if !ok {
		return nil, "", 0, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.contentType, int64(len(f.data)), nil
}

func (s *Files) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
