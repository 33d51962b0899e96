package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/Hamraz/internal/models"
)

// storeFactory builds a fresh store for one test run.
type storeFactory func(t *testing.T) Store

func inMemoryFactory(t *testing.T) Store {
	t.Helper()
	return NewInMemoryStore()
}

func sqliteFactory(t *testing.T) Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "hamraz_test.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func postgresFactory(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("HAMRAZ_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HAMRAZ_TEST_POSTGRES_DSN not set; skipping Postgres store tests")
	}
	s, err := NewPostgresStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to create Postgres store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"inmemory": inMemoryFactory,
		"sqlite":   sqliteFactory,
		"postgres": postgresFactory,
	}
}

func TestMessageLogOrderingAndFiltering(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)

			texts := []string{"اول", "دوم", "سوم"}
			var ids []int64
			for i, text := range texts {
				sessionID := 1
				if i == 2 {
					sessionID = 2
				}
				stored, err := s.AddMessage(models.Message{
					ParticipantID: "u1",
					Text:          text,
					IsFromUser:    true,
					SessionID:     sessionID,
					State:         "GREETING",
				})
				if err != nil {
					t.Fatalf("failed to add message: %v", err)
				}
				if stored.ID == 0 {
					t.Fatal("expected an assigned message id")
				}
				ids = append(ids, stored.ID)
			}
			if _, err := s.AddMessage(models.Message{ParticipantID: "u2", Text: "دیگری", SessionID: 1}); err != nil {
				t.Fatalf("failed to add message: %v", err)
			}

			all, err := s.GetMessages("u1", 0)
			if err != nil {
				t.Fatalf("failed to get messages: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("expected 3 messages for u1, got %d", len(all))
			}
			for i := 1; i < len(all); i++ {
				if all[i].ID <= all[i-1].ID {
					t.Error("expected messages in ascending id order")
				}
			}

			session1, err := s.GetMessages("u1", 1)
			if err != nil {
				t.Fatalf("failed to get session messages: %v", err)
			}
			if len(session1) != 2 {
				t.Errorf("expected 2 messages in session 1, got %d", len(session1))
			}

			after, err := s.GetMessagesAfter("u1", ids[0], 0)
			if err != nil {
				t.Fatalf("failed to get messages after: %v", err)
			}
			if len(after) != 2 {
				t.Errorf("expected 2 messages after the first, got %d", len(after))
			}

			maxSession, err := s.GetMaxSessionID("u1")
			if err != nil {
				t.Fatalf("failed to get max session: %v", err)
			}
			if maxSession != 2 {
				t.Errorf("expected max session 2, got %d", maxSession)
			}
			if maxSession, err = s.GetMaxSessionID("nobody"); err != nil || maxSession != 0 {
				t.Errorf("expected max session 0 for unknown participant, got %d, err %v", maxSession, err)
			}
		})
	}
}

func TestMemoryStateRoundTrip(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)

			got, err := s.GetMemoryState("u1")
			if err != nil {
				t.Fatalf("failed to get memory state: %v", err)
			}
			if got != nil {
				t.Fatal("expected nil memory state before first save")
			}

			state := models.MemoryState{
				ParticipantID: "u1",
				Summary:       "کاربر امروز خسته است",
				LastFoldedID:  7,
				UpdatedAt:     time.Now().UTC().Truncate(time.Second),
			}
			if err := s.SaveMemoryState(state); err != nil {
				t.Fatalf("failed to save memory state: %v", err)
			}

			got, err = s.GetMemoryState("u1")
			if err != nil || got == nil {
				t.Fatalf("failed to reload memory state: %v", err)
			}
			if got.Summary != state.Summary || got.LastFoldedID != state.LastFoldedID {
				t.Errorf("unexpected memory state: %+v", got)
			}

			state.Summary = "به‌روز شده"
			state.LastFoldedID = 12
			if err := s.SaveMemoryState(state); err != nil {
				t.Fatalf("failed to update memory state: %v", err)
			}
			got, err = s.GetMemoryState("u1")
			if err != nil || got == nil {
				t.Fatalf("failed to reload memory state: %v", err)
			}
			if got.LastFoldedID != 12 {
				t.Errorf("expected updated fold pointer 12, got %d", got.LastFoldedID)
			}
		})
	}
}

func TestParticipantRoundTrip(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)

			got, err := s.GetParticipant("u1")
			if err != nil {
				t.Fatalf("failed to get participant: %v", err)
			}
			if got != nil {
				t.Fatal("expected nil for unknown participant")
			}

			now := time.Now().UTC().Truncate(time.Second)
			p := models.Participant{
				ID:         "u1",
				Name:       "مریم",
				Stage:      models.StageBeginning,
				Group:      models.GroupIntervention,
				EnrolledAt: now,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := s.SaveParticipant(p); err != nil {
				t.Fatalf("failed to save participant: %v", err)
			}

			got, err = s.GetParticipant("u1")
			if err != nil || got == nil {
				t.Fatalf("failed to reload participant: %v", err)
			}
			if got.Name != p.Name || got.Stage != p.Stage || got.Group != p.Group {
				t.Errorf("unexpected participant: %+v", got)
			}

			p.Stage = models.StageIntermediate
			if err := s.SaveParticipant(p); err != nil {
				t.Fatalf("failed to update participant: %v", err)
			}
			got, err = s.GetParticipant("u1")
			if err != nil || got == nil {
				t.Fatalf("failed to reload participant: %v", err)
			}
			if got.Stage != models.StageIntermediate {
				t.Errorf("expected updated stage, got %s", got.Stage)
			}

			list, err := s.ListParticipants()
			if err != nil {
				t.Fatalf("failed to list participants: %v", err)
			}
			if len(list) != 1 {
				t.Errorf("expected 1 participant, got %d", len(list))
			}
		})
	}
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected an error when DSN is not set")
	}
}
