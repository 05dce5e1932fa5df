package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/christopherklint97/sitehours/internal/catalog"
	"github.com/christopherklint97/sitehours/internal/draft"
	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

var (
	_ catalog.Source = (*Client)(nil)
	_ draft.Store    = (*Client)(nil)
	_ submit.Target  = (*Client)(nil)
)

type Site struct {
	ID   int    `json:"ID"`
	Name string `json:"Nome"`
}

type clockEvent struct {
	User      int       `json:"User"`
	Obra      int       `json:"Obra"`
	Timestamp time.Time `json:"Timestamp"`
	Tipo      string    `json:"Tipo"`
}

// SubmittedLine is a previously submitted detail line. A nil
// ColaboradorID marks an external worker.
type SubmittedLine struct {
	ColaboradorID *int   `json:"ColaboradorID"`
	ObraID        int    `json:"ObraID"`
	ObraNome      string `json:"ObraNome"`
	Data          string `json:"Data"`
	NumHoras      int    `json:"NumHoras"`
	Funcionario   string `json:"Funcionario"`
	Empresa       string `json:"Empresa"`
	TipoHoraID    *int   `json:"TipoHoraID"`
}

func (c *Client) Roster(ctx context.Context) ([]identity.Team, error) {
	var teams []identity.Team
	if err := c.getJSON(ctx, "/equipas", &teams); err != nil {
		return nil, fmt.Errorf("getting roster: %w", err)
	}
	return teams, nil
}

func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := c.getJSON(ctx, "/obras", &sites); err != nil {
		return nil, fmt.Errorf("getting sites: %w", err)
	}
	return sites, nil
}

// ClockEvents returns the clock readings of one worker on one day.
// Readings with an unknown type are dropped.
func (c *Client) ClockEvents(ctx context.Context, workerID int, day timecalc.Date) ([]timecalc.ClockEvent, error) {
	q := url.Values{}
	q.Set("user", strconv.Itoa(workerID))
	q.Set("data", day.String())

	var raw []clockEvent
	if err := c.getJSON(ctx, "/picagens?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("getting clock events: %w", err)
	}

	events := make([]timecalc.ClockEvent, 0, len(raw))
	for _, e := range raw {
		kind := timecalc.EventKind(e.Tipo)
		if kind != timecalc.Entry && kind != timecalc.Exit {
			c.logger.Debug("skipping clock event with unknown type", "worker", e.User, "type", e.Tipo)
			continue
		}
		events = append(events, timecalc.ClockEvent{
			WorkerID:  e.User,
			SiteID:    e.Obra,
			Timestamp: e.Timestamp,
			Kind:      kind,
		})
	}
	return events, nil
}

func (c *Client) Submitted(ctx context.Context, p timesheet.Period) ([]SubmittedLine, error) {
	q := url.Values{}
	q.Set("ano", strconv.Itoa(p.Year))
	q.Set("mes", strconv.Itoa(int(p.Month)))

	var lines []SubmittedLine
	if err := c.getJSON(ctx, "/registos?"+q.Encode(), &lines); err != nil {
		return nil, fmt.Errorf("getting submitted records: %w", err)
	}
	return lines, nil
}

// Specialties implements catalog.Source.
func (c *Client) Specialties(ctx context.Context) ([]catalog.Specialty, error) {
	var out []catalog.Specialty
	if err := c.getJSON(ctx, "/especialidades", &out); err != nil {
		return nil, fmt.Errorf("getting specialties: %w", err)
	}
	return out, nil
}

// Equipment implements catalog.Source.
func (c *Client) Equipment(ctx context.Context, prefix string) ([]catalog.Equipment, error) {
	path := "/equipamentos"
	if prefix != "" {
		path += "?prefixo=" + url.QueryEscape(prefix)
	}
	var out []catalog.Equipment
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("getting equipment: %w", err)
	}
	return out, nil
}

// Classes implements catalog.Source.
func (c *Client) Classes(ctx context.Context) ([]catalog.Class, error) {
	var out []catalog.Class
	if err := c.getJSON(ctx, "/classes", &out); err != nil {
		return nil, fmt.Errorf("getting classes: %w", err)
	}
	return out, nil
}

func draftPath(key draft.Key) string {
	return fmt.Sprintf("/rascunhos/%s/%d/%d", url.PathEscape(key.User), key.Year, int(key.Month))
}

// Save implements draft.Store.
func (c *Client) Save(ctx context.Context, key draft.Key, data []byte) error {
	if _, err := c.doRequest(ctx, http.MethodPut, draftPath(key), json.RawMessage(data)); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

// Load implements draft.Store.
func (c *Client) Load(ctx context.Context, key draft.Key) ([]byte, error) {
	data, err := c.doRequest(ctx, http.MethodGet, draftPath(key), nil)
	if IsNotFound(err) {
		return nil, draft.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft: %w", err)
	}
	return data, nil
}

// Delete implements draft.Store.
func (c *Client) Delete(ctx context.Context, key draft.Key) error {
	_, err := c.doRequest(ctx, http.MethodDelete, draftPath(key), nil)
	if IsNotFound(err) {
		return draft.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}

// CreateHeader implements submit.Target.
func (c *Client) CreateHeader(ctx context.Context, h submit.Header) (int, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/documentos", h)
	if err != nil {
		return 0, fmt.Errorf("creating header: %w", err)
	}
	var created struct {
		ID int `json:"ID"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return 0, fmt.Errorf("parsing header response: %w", err)
	}
	if created.ID == 0 {
		return 0, fmt.Errorf("header response carried no document id")
	}
	return created.ID, nil
}

// CreateLine implements submit.Target.
func (c *Client) CreateLine(ctx context.Context, l submit.Line) error {
	path := fmt.Sprintf("/documentos/%d/linhas", l.DocumentoID)
	if _, err := c.doRequest(ctx, http.MethodPost, path, l); err != nil {
		return fmt.Errorf("creating line %d: %w", l.Numero, err)
	}
	return nil
}
