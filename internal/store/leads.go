package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateLead persists a new lead.
func (s *Store) CreateLead(l *Lead) (*Lead, error) {
	if l.LeadID == "" {
		l.LeadID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = LeadNew
	}
	res, err := s.db.Exec(`
	INSERT INTO leads (lead_id, name, email, phone, budget, timeline, areas, interest_type, source, score, status, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.LeadID, l.Name, l.Email, l.Phone, l.Budget, l.Timeline, l.Areas,
		l.InterestType, l.Source, l.Score, l.Status, l.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return s.GetLead(l.LeadID)
}

const leadColumns = `id, lead_id, COALESCE(name,''), COALESCE(email,''), COALESCE(phone,''),
	COALESCE(budget,''), COALESCE(timeline,''), COALESCE(areas,''), COALESCE(interest_type,''),
	COALESCE(source,''), score, status, COALESCE(notes,''), created_at, updated_at, qualified_at`

func scanLead(row interface{ Scan(...interface{}) error }) (*Lead, error) {
	var l Lead
	var qualifiedAt sql.NullTime
	err := row.Scan(
		&l.ID, &l.LeadID, &l.Name, &l.Email, &l.Phone,
		&l.Budget, &l.Timeline, &l.Areas, &l.InterestType,
		&l.Source, &l.Score, &l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt, &qualifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if qualifiedAt.Valid {
		l.QualifiedAt = &qualifiedAt.Time
	}
	return &l, nil
}

// GetLead returns a lead by lead_id.
func (s *Store) GetLead(leadID string) (*Lead, error) {
	l, err := scanLead(s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE lead_id = ?`, leadID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lead not found: %s", leadID)
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

// ListLeads returns all leads, newest first.
func (s *Store) ListLeads() ([]Lead, error) {
	rows, err := s.db.Query(`SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// UpdateLeadScoring persists the intake outcome: score, status, and an
// appended audit note.
func (s *Store) UpdateLeadScoring(leadID string, score int, status, auditNote string) error {
	query := `UPDATE leads SET score = ?, status = ?,
		notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END,
		updated_at = datetime('now')`
	args := []interface{}{score, status, auditNote, auditNote}
	if status == LeadQualified {
		query += `, qualified_at = ?`
		args = append(args, time.Now().UTC())
	}
	query += ` WHERE lead_id = ?`
	args = append(args, leadID)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update lead scoring: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lead not found: %s", leadID)
	}
	return nil
}

// CreatePerson persists a contact.
func (s *Store) CreatePerson(p *Person) (*Person, error) {
	if p.PersonID == "" {
		p.PersonID = uuid.NewString()
	}
	var lastContact interface{}
	if p.LastContactAt != nil {
		lastContact = *p.LastContactAt
	}
	res, err := s.db.Exec(`
	INSERT INTO people (person_id, name, email, phone, segment, notes, last_contact_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PersonID, p.Name, p.Email, p.Phone, p.Segment, p.Notes, lastContact,
	)
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

const personColumns = `id, person_id, COALESCE(name,''), COALESCE(email,''), COALESCE(phone,''),
	COALESCE(segment,''), COALESCE(notes,''), last_contact_at, created_at`

func scanPeople(rows *sql.Rows) ([]Person, error) {
	var people []Person
	for rows.Next() {
		var p Person
		var lastContact sql.NullTime
		if err := rows.Scan(&p.ID, &p.PersonID, &p.Name, &p.Email, &p.Phone,
			&p.Segment, &p.Notes, &lastContact, &p.CreatedAt); err != nil {
			return nil, err
		}
		if lastContact.Valid {
			p.LastContactAt = &lastContact.Time
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// ListPeople returns all contacts.
func (s *Store) ListPeople() ([]Person, error) {
	rows, err := s.db.Query(`SELECT ` + personColumns + ` FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()
	return scanPeople(rows)
}

// segmentCadenceDays maps a contact segment to its expected touch cadence.
// Unsegmented contacts fall back to the quarterly default.
var segmentCadenceDays = map[string]int{
	"a_list":      30,
	"b_list":      60,
	"c_list":      90,
	"sphere":      90,
	"past_client": 120,
}

const defaultCadenceDays = 90

// ContactsDueForFollowUp returns contacts whose last touch is older than
// their segment cadence plus minOverdueDays.
func (s *Store) ContactsDueForFollowUp(now time.Time, minOverdueDays int) ([]Person, error) {
	rows, err := s.db.Query(`SELECT ` + personColumns + ` FROM people ORDER BY last_contact_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("contacts due: %w", err)
	}
	defer rows.Close()
	people, err := scanPeople(rows)
	if err != nil {
		return nil, err
	}

	var due []Person
	for _, p := range people {
		cadence, ok := segmentCadenceDays[p.Segment]
		if !ok {
			cadence = defaultCadenceDays
		}
		last := p.CreatedAt
		if p.LastContactAt != nil {
			last = *p.LastContactAt
		}
		dueAt := last.AddDate(0, 0, cadence)
		if now.Sub(dueAt) >= time.Duration(minOverdueDays)*24*time.Hour {
			due = append(due, p)
		}
	}
	return due, nil
}

// TouchPerson stamps the contact's last touch time.
func (s *Store) TouchPerson(personID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE people SET last_contact_at = ? WHERE person_id = ?`, at, personID)
	return err
}

// CreateInteraction logs a touch with a person.
func (s *Store) CreateInteraction(i *Interaction) (*Interaction, error) {
	if i.OccurredAt.IsZero() {
		i.OccurredAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
	INSERT INTO interactions (person_id, kind, summary, occurred_at) VALUES (?, ?, ?, ?)`,
		i.PersonID, i.Kind, i.Summary, i.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("create interaction: %w", err)
	}
	i.ID, _ = res.LastInsertId()
	return i, nil
}

// SoftDeleteInteraction marks an interaction deleted without removing it.
func (s *Store) SoftDeleteInteraction(id int64) error {
	_, err := s.db.Exec(`UPDATE interactions SET deleted_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// CleanupOldDeletedInteractions purges soft-deleted interactions older than days.
func (s *Store) CleanupOldDeletedInteractions(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.db.Exec(`DELETE FROM interactions WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup interactions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CreateTask persists a to-do.
func (s *Store) CreateTask(t *Task) (*Task, error) {
	if t.TaskID == "" {
		t.TaskID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = "open"
	}
	var dueAt interface{}
	if t.DueAt != nil {
		dueAt = *t.DueAt
	}
	res, err := s.db.Exec(`
	INSERT INTO tasks (task_id, person_id, title, status, due_at) VALUES (?, ?, ?, ?, ?)`,
		t.TaskID, t.PersonID, t.Title, t.Status, dueAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return t, nil
}

// ListTasks returns all tasks, optionally filtered by status.
func (s *Store) ListTasks(status string) ([]Task, error) {
	query := `SELECT id, task_id, COALESCE(person_id,''), title, status, due_at, created_at FROM tasks WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var dueAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.TaskID, &t.PersonID, &t.Title, &t.Status, &dueAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		if dueAt.Valid {
			t.DueAt = &dueAt.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
