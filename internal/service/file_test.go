package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/model"
)

func newTestFileService(store *fakeStore) *FileService {
	return NewFileService(store, testLogger())
}

func TestUpsert_CreateThenGet(t *testing.T) {
	svc := newTestFileService(newFakeStore())
	ctx := context.Background()
	content := `{"name": "demo", "tags": ["a", "b"], "n": 1.5}`

	f, created, err := svc.Upsert(ctx, "u1", "demo", content)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !created || f.ID == "" || f.Views != 0 {
		t.Errorf("Upsert() = %+v, created %v", f, created)
	}

	got, err := svc.Get(ctx, "u1", "demo")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Content != content {
		t.Errorf("Content = %q, want verbatim %q", got.Content, content)
	}

	var want, have any
	json.Unmarshal([]byte(content), &want)
	json.Unmarshal(got.Detail().Content, &have)
	if !reflect.DeepEqual(want, have) {
		t.Errorf("Detail content = %v, want %v", have, want)
	}
}

func TestUpsert_UpdatesInPlace(t *testing.T) {
	store := newFakeStore()
	svc := newTestFileService(store)
	ctx := context.Background()

	first, _, err := svc.Upsert(ctx, "u1", "config", `{"x":1}`)
	if err != nil {
		t.Fatal(err)
	}
	store.files[first.ID].Views = 4

	second, created, err := svc.Upsert(ctx, "u1", "config", `{"x":2}`)
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if created {
		t.Error("second Upsert() reported a create")
	}
	if second.ID != first.ID {
		t.Errorf("id changed %s -> %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("createdAt changed on update")
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Error("updatedAt did not advance on update")
	}

	list, _ := svc.List(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("List() has %d entries, want 1", len(list))
	}
	if list[0].Views != 4 {
		t.Errorf("views = %d, want preserved 4", list[0].Views)
	}

	got, _ := svc.Get(ctx, "u1", "config")
	if got.Content != `{"x":2}` {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestUpsert_InvalidJSON(t *testing.T) {
	store := newFakeStore()
	svc := newTestFileService(store)
	ctx := context.Background()

	_, _, err := svc.Upsert(ctx, "u1", "broken", "{invalid")
	assertErrorIs(t, err, apperror.ErrInvalidFormat)
	if len(store.files) != 0 {
		t.Error("invalid JSON created a row")
	}

	svc.Upsert(ctx, "u1", "keep", `{"ok":true}`)
	_, _, err = svc.Upsert(ctx, "u1", "keep", `{"ok":`)
	assertErrorIs(t, err, apperror.ErrInvalidFormat)

	got, _ := svc.Get(ctx, "u1", "keep")
	if got.Content != `{"ok":true}` {
		t.Errorf("invalid update modified content to %q", got.Content)
	}
}

func TestUpsert_Validation(t *testing.T) {
	svc := newTestFileService(newFakeStore())

	tests := []struct {
		name     string
		fileName string
		content  string
	}{
		{"empty name", "", `{}`},
		{"blank name", "   ", `{}`},
		{"slash", "a/b", `{}`},
		{"backslash", `a\b`, `{}`},
		{"dot dot", "..", `{}`},
		{"control char", "a\nb", `{}`},
		{"too long", strings.Repeat("n", MaxFileNameLength+1), `{}`},
		{"empty content", "x", ""},
		{"blank content", "x", "  \n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Upsert(context.Background(), "u1", tc.fileName, tc.content)
			assertErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestUpsert_AcceptsAnyJSONValue(t *testing.T) {
	svc := newTestFileService(newFakeStore())

	for i, content := range []string{`[]`, `"text"`, `42`, `null`, `true`, `{"nested":{"deep":[1,2,{"x":null}]}}`} {
		name := "v" + string(rune('a'+i))
		if _, _, err := svc.Upsert(context.Background(), "u1", name, content); err != nil {
			t.Errorf("Upsert(%s) error = %v", content, err)
		}
	}
}

func TestUpsert_CaseVariantConflicts(t *testing.T) {
	store := newFakeStore()
	svc := newTestFileService(store)
	ctx := context.Background()

	if _, _, err := svc.Upsert(ctx, "u1", "Config", `{}`); err != nil {
		t.Fatal(err)
	}
	_, _, err := svc.Upsert(ctx, "u1", "config", `{}`)
	assertErrorIs(t, err, apperror.ErrConflict)

	// a different owner is unaffected
	if _, _, err := svc.Upsert(ctx, "u2", "config", `{}`); err != nil {
		t.Errorf("other owner Upsert() error = %v", err)
	}
}

func TestUpsert_LosingConcurrentCreateUpdates(t *testing.T) {
	store := newFakeStore()
	svc := newTestFileService(store)
	ctx := context.Background()

	// Another save of "config" lands between the lookup and the insert.
	var rivalID string
	store.beforeCreateFile = func(f *fakeStore, file *model.JSONFile) {
		rival := &model.JSONFile{
			ID:        f.newID("file"),
			UserID:    file.UserID,
			FileName:  "config",
			Content:   `{"rival":true}`,
			CreatedAt: f.tick(),
		}
		rival.UpdatedAt = rival.CreatedAt
		f.files[rival.ID] = rival
		rivalID = rival.ID
	}

	saved, created, err := svc.Upsert(ctx, "u1", "config", `{"mine":true}`)
	if err != nil {
		t.Fatalf("Upsert() error = %v, want update of the rival row", err)
	}
	if created {
		t.Error("Upsert() created = true, want false")
	}
	if saved.ID != rivalID {
		t.Errorf("saved ID = %q, want rival %q", saved.ID, rivalID)
	}

	got, err := svc.Get(ctx, "u1", "config")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != `{"mine":true}` {
		t.Errorf("Content = %q, want last write", got.Content)
	}
	if files, _ := svc.List(ctx, "u1"); len(files) != 1 {
		t.Errorf("List() has %d files, want 1", len(files))
	}
}

func TestUpsert_LosingConcurrentCaseVariantConflicts(t *testing.T) {
	store := newFakeStore()
	svc := newTestFileService(store)

	store.beforeCreateFile = func(f *fakeStore, file *model.JSONFile) {
		rival := &model.JSONFile{ID: f.newID("file"), UserID: file.UserID, FileName: "CONFIG", Content: `{}`, CreatedAt: f.tick()}
		f.files[rival.ID] = rival
	}

	_, _, err := svc.Upsert(context.Background(), "u1", "config", `{}`)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Upsert() error = %v, want ErrConflict", err)
	}
}

func TestFiles_OwnerIsolation(t *testing.T) {
	svc := newTestFileService(newFakeStore())
	ctx := context.Background()

	svc.Upsert(ctx, "alice", "config", `{"x":1}`)
	svc.Upsert(ctx, "bob", "config", `{"x":2}`)

	a, err := svc.Get(ctx, "alice", "config")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Get(ctx, "bob", "config")
	if err != nil {
		t.Fatal(err)
	}
	if a.Content != `{"x":1}` || b.Content != `{"x":2}` {
		t.Errorf("alice=%s bob=%s", a.Content, b.Content)
	}

	_, err = svc.Get(ctx, "carol", "config")
	assertErrorIs(t, err, apperror.ErrNotFound)

	err = svc.Delete(ctx, "carol", "config")
	assertErrorIs(t, err, apperror.ErrNotFound)
}

func TestGet_ExactName(t *testing.T) {
	svc := newTestFileService(newFakeStore())
	svc.Upsert(context.Background(), "u1", "Config", `{}`)

	_, err := svc.Get(context.Background(), "u1", "config")
	assertErrorIs(t, err, apperror.ErrNotFound)
}

func TestList_NewestFirstWithoutContent(t *testing.T) {
	svc := newTestFileService(newFakeStore())
	ctx := context.Background()

	for _, n := range []string{"one", "two", "three"} {
		if _, _, err := svc.Upsert(ctx, "u1", n, `{}`); err != nil {
			t.Fatal(err)
		}
	}

	list, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, f := range list {
		names = append(names, f.FileName)
	}
	if strings.Join(names, ",") != "three,two,one" {
		t.Errorf("List() order = %v", names)
	}

	empty, err := svc.List(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("List() for empty owner = %v, %v", empty, err)
	}
}

func TestList_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("timeout")

	if _, err := newTestFileService(store).List(context.Background(), "u1"); err == nil {
		t.Fatal("List() should propagate store errors")
	}
}

func TestDelete(t *testing.T) {
	svc := newTestFileService(newFakeStore())
	ctx := context.Background()
	svc.Upsert(ctx, "u1", "gone", `{}`)

	if err := svc.Delete(ctx, "u1", "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err := svc.Get(ctx, "u1", "gone")
	assertErrorIs(t, err, apperror.ErrNotFound)

	err = svc.Delete(ctx, "u1", "gone")
	assertErrorIs(t, err, apperror.ErrNotFound)
}
