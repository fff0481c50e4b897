package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/model"
)

// fakeStore is an in-memory UserRepository and FileRepository with the same
// uniqueness rules as the SQL schema.
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*model.User
	files  map[string]*model.JSONFile
	nextID int
	clock  time.Time

	// set to a non-nil error to simulate a database failure
	createUserErr error
	getUserErr    error
	setKeyErrs    []error
	listErr       error
	incrementErr  error

	// beforeCreateFile runs under the lock at the start of CreateFile, to
	// let a test slip in a competing insert.
	beforeCreateFile func(f *fakeStore, file *model.JSONFile)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*model.User),
		files: make(map[string]*model.JSONFile),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.ConflictMsg("an account with this email already exists")
		}
	}
	user.ID = f.newID("user")
	user.CreatedAt = f.tick()
	user.UpdatedAt = user.CreatedAt
	if user.Type == "" {
		user.Type = model.UserTypeUser
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) findUser(match func(*model.User) bool) (*model.User, bool) {
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, true
		}
	}
	return nil, false
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	if u, ok := f.findUser(func(u *model.User) bool { return u.ID == id }); ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	if u, ok := f.findUser(func(u *model.User) bool { return u.Email == email }); ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.findUser(func(u *model.User) bool { return u.APIKey != nil && *u.APIKey == apiKey }); ok {
		return u, nil
	}
	return nil, apperror.NotFoundMsg("Invalid API key")
}

func (f *fakeStore) SetAPIKey(ctx context.Context, userID string, apiKey *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.setKeyErrs) > 0 {
		err := f.setKeyErrs[0]
		f.setKeyErrs = f.setKeyErrs[1:]
		if err != nil {
			return err
		}
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	if apiKey != nil {
		for _, other := range f.users {
			if other.ID != userID && other.APIKey != nil && *other.APIKey == *apiKey {
				return apperror.ConflictMsg("api key already in use")
			}
		}
		k := *apiKey
		apiKey = &k
	}
	u.APIKey = apiKey
	u.UpdatedAt = f.tick()
	return nil
}

func (f *fakeStore) SetPreviewURL(ctx context.Context, userID string, previewURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.PreviewURL = previewURL
	u.UpdatedAt = f.tick()
	return nil
}

func (f *fakeStore) CreateFile(ctx context.Context, file *model.JSONFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hook := f.beforeCreateFile; hook != nil {
		f.beforeCreateFile = nil
		hook(f, file)
	}
	for _, existing := range f.files {
		if existing.UserID == file.UserID && model.FoldName(existing.FileName) == model.FoldName(file.FileName) {
			return apperror.ConflictMsg("duplicate file name")
		}
	}
	file.ID = f.newID("file")
	file.Views = 0
	file.CreatedAt = f.tick()
	file.UpdatedAt = file.CreatedAt
	copied := *file
	f.files[file.ID] = &copied
	return nil
}

func (f *fakeStore) findFile(userID string, match func(string) bool) (*model.JSONFile, bool) {
	for _, file := range f.files {
		if file.UserID == userID && match(file.FileName) {
			copied := *file
			return &copied, true
		}
	}
	return nil, false
}

func (f *fakeStore) GetFile(ctx context.Context, userID, fileName string) (*model.JSONFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.findFile(userID, func(n string) bool { return n == fileName }); ok {
		return file, nil
	}
	return nil, apperror.NotFound("file", fileName)
}

func (f *fakeStore) FindFileFold(ctx context.Context, userID, fileName string) (*model.JSONFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.findFile(userID, func(n string) bool { return model.FoldName(n) == model.FoldName(fileName) }); ok {
		return file, nil
	}
	return nil, apperror.NotFound("file", fileName)
}

func (f *fakeStore) ListFiles(ctx context.Context, userID string) ([]model.JSONFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.JSONFile, 0)
	for _, file := range f.files {
		if file.UserID == userID {
			copied := *file
			copied.Content = ""
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) UpdateFileContent(ctx context.Context, file *model.JSONFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.files[file.ID]
	if !ok || stored.UserID != file.UserID {
		return apperror.NotFound("file", file.FileName)
	}
	file.UpdatedAt = f.tick()
	stored.Content = file.Content
	stored.UpdatedAt = file.UpdatedAt
	return nil
}

func (f *fakeStore) DeleteFile(ctx context.Context, userID, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, file := range f.files {
		if file.UserID == userID && file.FileName == fileName {
			delete(f.files, id)
			return nil
		}
	}
	return apperror.NotFound("file", fileName)
}

func (f *fakeStore) IncrementViews(ctx context.Context, fileID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	file, ok := f.files[fileID]
	if !ok {
		return 0, apperror.NotFound("file", fileID)
	}
	file.Views++
	return file.Views, nil
}

func (f *fakeStore) views(t *testing.T, userID, fileName string) int64 {
	t.Helper()
	file, err := f.GetFile(context.Background(), userID, fileName)
	if err != nil {
		t.Fatalf("views(%q): %v", fileName, err)
	}
	return file.Views
}

// seqKeys hands out keys from a fixed list, then fails.
type seqKeys struct {
	keys []string
}

func (s *seqKeys) Generate() (string, error) {
	if len(s.keys) == 0 {
		return "", errors.New("out of keys")
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func newTestAccountService(t *testing.T, store *fakeStore) *AccountService {
	t.Helper()
	return NewAccountService(store, newTestTokens(t), auth.NewPasswordServiceForTest(4), auth.NewKeyGenerator(), testLogger())
}

func mustRegister(t *testing.T, svc *AccountService, email string) *model.User {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  "password123",
	})
	if err != nil {
		t.Fatalf("Register(%q): %v", email, err)
	}
	return res.User
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want errors.Is(%v)", err, target)
	}
}
