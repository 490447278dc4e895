package db

import (
	"testing"

	"github.com/google/uuid"
)

func TestQuery_BuildsNumberedClauses(t *testing.T) {
	tenant := uuid.New()
	q := NewQuery("patients", "id, first_name", "tenant_id", tenant)
	q.Add("(first_name ILIKE $? OR last_name ILIKE $?)", "%ann%", "%ann%")
	q.AddRaw("assigned_clinician_id IS NOT NULL")
	q.Add("active = $?", true)
	q.OrderBy("last_name, first_name")

	wantCount := "SELECT COUNT(*) FROM patients WHERE TRUE AND tenant_id = $1" +
		" AND (first_name ILIKE $2 OR last_name ILIKE $3)" +
		" AND assigned_clinician_id IS NOT NULL AND active = $4"
	if got := q.CountSQL(); got != wantCount {
		t.Errorf("CountSQL:\n got %s\nwant %s", got, wantCount)
	}

	wantData := "SELECT id, first_name FROM patients WHERE TRUE AND tenant_id = $1" +
		" AND (first_name ILIKE $2 OR last_name ILIKE $3)" +
		" AND assigned_clinician_id IS NOT NULL AND active = $4" +
		" ORDER BY last_name, first_name LIMIT $5 OFFSET $6"
	if got := q.DataSQL(20, 40); got != wantData {
		t.Errorf("DataSQL:\n got %s\nwant %s", got, wantData)
	}

	args := q.DataArgs(20, 40)
	if len(args) != 6 || args[0] != tenant || args[4] != 20 || args[5] != 40 {
		t.Errorf("unexpected data args %v", args)
	}
	if len(q.CountArgs()) != 4 {
		t.Errorf("expected 4 count args, got %d", len(q.CountArgs()))
	}
	if q.Idx() != 5 {
		t.Errorf("expected next index 5, got %d", q.Idx())
	}
}
