package supabasetest

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InsertTask stores a row owned by userID, bypassing row policies, and returns its id.
func (s *Server) InsertTask(userID string, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.newRowLocked(fields)
	row["user_id"] = userID
	s.rows = append(s.rows, row)
	return row["id"].(string)
}

// Tasks returns a copy of every stored row regardless of owner.
func (s *Server) Tasks() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, cloneRow(row))
	}
	return out
}

func (s *Server) newRowLocked(fields map[string]any) map[string]any {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := map[string]any{
		"id":          uuid.NewString(),
		"description": "",
		"status":      "Pending",
		"created_at":  now,
		"updated_at":  now,
	}
	for k, v := range fields {
		if k == "id" || k == "created_at" {
			continue
		}
		row[k] = v
	}
	return row
}

type filter struct {
	column string
	op     string
	value  string
}

func (f filter) match(row map[string]any) bool {
	v, _ := row[f.column].(string)
	switch f.op {
	case "eq":
		return v == f.value
	case "ilike":
		pattern := "(?is)^" + strings.ReplaceAll(regexp.QuoteMeta(f.value), "%", ".*") + "$"
		re, err := regexp.Compile(pattern)
		return err == nil && re.MatchString(v)
	}
	return false
}

func parseFilters(r *http.Request) ([]filter, string, bool) {
	var out []filter
	for col, vals := range r.URL.Query() {
		if col == "select" || col == "order" {
			continue
		}
		for _, v := range vals {
			op, value, ok := strings.Cut(v, ".")
			if !ok || (op != "eq" && op != "ilike") {
				return nil, "", false
			}
			if col == "id" && op == "eq" {
				if _, err := uuid.Parse(value); err != nil {
					return nil, value, false
				}
			}
			out = append(out, filter{column: col, op: op, value: value})
		}
	}
	return out, "", true
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	acct, _, ok := s.authenticate(r)
	if !ok && r.Method != http.MethodGet {
		writeRestError(w, http.StatusUnauthorized, "42501", "permission denied for table tasks")
		return
	}
	owner := ""
	if ok {
		owner = acct.record.ID
	}

	filters, badValue, valid := parseFilters(r)
	if !valid {
		writeRestError(w, http.StatusBadRequest, "22P02", `invalid input syntax for type uuid: "`+badValue+`"`)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rows := s.matching(owner, filters)
		sortRows(rows, r.URL.Query().Get("order"))
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var in []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeRestError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
			return
		}
		s.mu.Lock()
		out := make([]map[string]any, 0, len(in))
		for _, fields := range in {
			if fields["user_id"] != owner {
				s.mu.Unlock()
				writeRestError(w, http.StatusForbidden, "42501", `new row violates row-level security policy for table "tasks"`)
				return
			}
			row := s.newRowLocked(fields)
			s.rows = append(s.rows, row)
			out = append(out, cloneRow(row))
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, out)
	case http.MethodPatch:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeRestError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
			return
		}
		s.mu.Lock()
		out := []map[string]any{}
		for _, row := range s.rows {
			if !visible(row, owner, filters) {
				continue
			}
			for k, v := range patch {
				if k == "id" || k == "user_id" || k == "created_at" {
					continue
				}
				row[k] = v
			}
			row["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
			out = append(out, cloneRow(row))
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	case http.MethodDelete:
		s.mu.Lock()
		out := []map[string]any{}
		kept := s.rows[:0]
		for _, row := range s.rows {
			if visible(row, owner, filters) {
				out = append(out, cloneRow(row))
				continue
			}
			kept = append(kept, row)
		}
		s.rows = kept
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	default:
		writeRestError(w, http.StatusMethodNotAllowed, "PGRST117", "Unsupported HTTP method")
	}
}

func (s *Server) matching(owner string, filters []filter) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for _, row := range s.rows {
		if visible(row, owner, filters) {
			out = append(out, cloneRow(row))
		}
	}
	return out
}

func visible(row map[string]any, owner string, filters []filter) bool {
	if owner == "" || row["user_id"] != owner {
		return false
	}
	for _, f := range filters {
		if !f.match(row) {
			return false
		}
	}
	return true
}

func sortRows(rows []map[string]any, order string) {
	if order == "" {
		return
	}
	col, dir, _ := strings.Cut(strings.Split(order, ",")[0], ".")
	desc := dir == "desc"
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(rows[i][col], rows[j][col])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	as, _ := a.(string)
	bs, _ := b.(string)
	at, aerr := time.Parse(time.RFC3339Nano, as)
	bt, berr := time.Parse(time.RFC3339Nano, bs)
	if aerr == nil && berr == nil {
		return at.Compare(bt)
	}
	return strings.Compare(as, bs)
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
