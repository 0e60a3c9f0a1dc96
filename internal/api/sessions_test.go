package api

import (
	"errors"
	"testing"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/khata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockStore(ttl time.Duration) (*SessionStore, *time.Time) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	st := NewSessionStore(ttl)
	st.now = func() time.Time { return now }
	return st, &now
}

func previewSession() *khata.Session {
	s := khata.NewSession(khata.Target{ClassID: "class-6a", SubjectID: "math", Term: 1, Year: 2025})
	s.State = khata.StatePreview
	s.Rows = []khata.MatchedMark{{RollNumber: "01", Name: "করিম", TotalMarks: 85, Status: khata.StatusNew}}
	return s
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	st, _ := clockStore(time.Hour)
	s := previewSession()
	st.Put(s)

	s.Rows[0].Name = "changed after put"
	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "করিম", got.Rows[0].Name)

	got.Rows[0].Name = "changed after get"
	again, _ := st.Get(s.ID)
	assert.Equal(t, "করিম", again.Rows[0].Name)
}

func TestSessionStoreExpiry(t *testing.T) {
	st, now := clockStore(30 * time.Minute)
	s := previewSession()
	st.Put(s)

	*now = now.Add(20 * time.Minute)
	_, err := st.Get(s.ID)
	require.NoError(t, err)

	// Get does not extend the lifetime, Update does
	_, err = st.Update(s.ID, func(*khata.Session) error { return nil })
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)
	_, err = st.Get(s.ID)
	require.NoError(t, err)

	*now = now.Add(31 * time.Minute)
	_, err = st.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Equal(t, 1, st.Len())
	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 0, st.Len())
}

func TestSessionStoreUpdateKeepsStateOnError(t *testing.T) {
	st, _ := clockStore(time.Hour)
	s := previewSession()
	st.Put(s)

	boom := errors.New("validation failed")
	got, err := st.Update(s.ID, func(sess *khata.Session) error {
		sess.Validation = []string{"row 1: bad"}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, got)
	assert.Equal(t, []string{"row 1: bad"}, got.Validation)

	stored, _ := st.Get(s.ID)
	assert.Equal(t, []string{"row 1: bad"}, stored.Validation)
}

func TestSessionStoreRefusesProcessing(t *testing.T) {
	st, _ := clockStore(time.Hour)
	s := khata.NewSession(khata.Target{ClassID: "c", SubjectID: "s", Term: 1, Year: 2025})
	s.State = khata.StateProcessing
	st.Put(s)

	called := false
	_, err := st.Update(s.ID, func(*khata.Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.False(t, called)

	_, err = st.Update("nope", func(*khata.Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
