package db

import "testing"

func TestOperationAndTableOf(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{"SELECT id, name FROM employees WHERE id = $1", "SELECT", "employees"},
		{"\n  INSERT INTO transactions (type) VALUES ($1)", "INSERT", "transactions"},
		{"update milestones SET progress = $2", "UPDATE", "milestones"},
		{"WITH prev AS (SELECT completed_at FROM tasks WHERE id = $1) UPDATE tasks", "WITH", "tasks"},
		{"", "unknown", "unknown"},
	}
	for _, c := range cases {
		if got := operationOf(c.sql); got != c.op {
			t.Errorf("operationOf(%q) = %q, want %q", c.sql, got, c.op)
		}
		if got := tableOf(c.sql); got != c.table {
			t.Errorf("tableOf(%q) = %q, want %q", c.sql, got, c.table)
		}
	}
}
