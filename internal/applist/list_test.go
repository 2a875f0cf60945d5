package applist

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptrack-engine/internal/domain"
)

func rec(company string, status domain.Status) domain.ApplicationRecord {
	return domain.ApplicationRecord{
		Company:     company,
		Position:    "Engineer",
		Status:      status,
		Location:    "Remote",
		AppliedDate: "2024-01-05",
	}
}

func TestAddAssignsUniqueIDsAndPrepends(t *testing.T) {
	l := New()

	var ids []string
	for i := 0; i < 50; i++ {
		r := l.Add(rec(fmt.Sprintf("Co%d", i), domain.StatusApplied))
		require.NotEmpty(t, r.ID)
		ids = append(ids, r.ID)
	}

	seen := map[string]bool{}
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	// newest-first display order
	all := l.All()
	require.Len(t, all, 50)
	assert.Equal(t, "Co49", all[0].Company)
	assert.Equal(t, "Co0", all[49].Company)
}

func TestIDsStayUniqueAcrossMutations(t *testing.T) {
	l := New()

	a := l.Add(rec("Acme", domain.StatusApplied))
	b := l.Add(rec("Globex", domain.StatusApplied))
	c := l.Add(rec("Initech", domain.StatusInterview))

	_, err := l.Update(b.ID, rec("Globex", domain.StatusOffer))
	require.NoError(t, err)
	l.Remove(a.ID)
	l.Add(rec("Hooli", domain.StatusApplied))

	seen := map[string]bool{}
	for _, r := range l.All() {
		require.False(t, seen[r.ID])
		seen[r.ID] = true
	}
	_ = c
}

func TestUpdatePreservesPosition(t *testing.T) {
	l := New()

	l.Add(rec("Acme", domain.StatusApplied))
	mid := l.Add(rec("Globex", domain.StatusApplied))
	l.Add(rec("Initech", domain.StatusApplied))

	updated, err := l.Update(mid.ID, rec("Globex", domain.StatusInterview))
	require.NoError(t, err)
	assert.Equal(t, mid.ID, updated.ID)

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, mid.ID, all[1].ID)
	assert.Equal(t, domain.StatusInterview, all[1].Status)
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	l := New()
	l.Add(rec("Acme", domain.StatusApplied))

	_, err := l.Update("nope", rec("Acme", domain.StatusOffer))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	l := New()
	l.Add(rec("Acme", domain.StatusApplied))

	l.Remove("nope")
	assert.Equal(t, 1, l.Len())
}

func TestCountByStatusTracksMutations(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.CountByStatus(domain.StatusApplied))

	r := l.Add(domain.ApplicationRecord{
		Company: "Acme", Position: "Engineer", Status: domain.StatusApplied,
		Location: "Remote", AppliedDate: "2024-01-05",
	})
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, l.CountByStatus(domain.StatusApplied))

	upd := r
	upd.Status = domain.StatusInterview
	_, err := l.Update(r.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, 0, l.CountByStatus(domain.StatusApplied))
	assert.Equal(t, 1, l.CountByStatus(domain.StatusInterview))

	l.Remove(r.ID)
	assert.Equal(t, 0, l.CountByStatus(domain.StatusInterview))
	assert.Equal(t, 0, l.Len())
}

func TestOnDate(t *testing.T) {
	l := New()
	l.Add(rec("Acme", domain.StatusApplied))
	other := rec("Globex", domain.StatusApplied)
	other.AppliedDate = "2024-02-10"
	l.Add(other)

	assert.Len(t, l.OnDate("2024-01-05"), 1)
	assert.Len(t, l.OnDate("2024-02-10"), 1)
	assert.Empty(t, l.OnDate("2024-03-01"))
}

func TestResetReplacesContents(t *testing.T) {
	l := New()
	l.Add(rec("Acme", domain.StatusApplied))

	l.Reset(nil)
	assert.Equal(t, 0, l.Len())
}
