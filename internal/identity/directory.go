package identity

import "strings"

// Member is one roster entry. WorkerID is nil for externals.
type Member struct {
	WorkerID *int   `json:"ColaboradorID"`
	Name     string `json:"Nome"`
	Code     string `json:"Codigo"`
	External bool   `json:"Externo"`
	Company  string `json:"Empresa"`
}

// Team groups roster members (an "equipa").
type Team struct {
	ID      int      `json:"ID"`
	Name    string   `json:"Nome"`
	Members []Member `json:"Membros"`
}

// Identity resolves a roster member. A member flagged internal without
// a worker id is treated as external since it has nothing stable to key on.
func (m Member) Identity() Identity {
	if m.External || m.WorkerID == nil {
		return NewExternal(m.Name, m.Company)
	}
	return NewInternal(*m.WorkerID, m.Name)
}

// Directory maps internal worker ids to their external employee code.
// It is built once per roster load.
type Directory struct {
	codes   map[int]string
	names   map[int]string
	members map[Key]Identity
}

func NewDirectory(teams []Team) *Directory {
	d := &Directory{
		codes:   make(map[int]string),
		names:   make(map[int]string),
		members: make(map[Key]Identity),
	}
	for _, t := range teams {
		for _, m := range t.Members {
			id := m.Identity()
			if _, seen := d.members[id.Key()]; !seen {
				d.members[id.Key()] = id
			}
			if id.Kind != Internal {
				continue
			}
			if code := strings.TrimSpace(m.Code); code != "" {
				d.codes[id.WorkerID] = code
			}
			d.names[id.WorkerID] = m.Name
		}
	}
	return d
}

// Code returns the external employee code for an internal worker.
func (d *Directory) Code(workerID int) (string, bool) {
	if d == nil {
		return "", false
	}
	c, ok := d.codes[workerID]
	return c, ok
}

func (d *Directory) Name(workerID int) string {
	if d == nil {
		return ""
	}
	return d.names[workerID]
}

// Members returns every distinct roster identity.
func (d *Directory) Members() []Identity {
	if d == nil {
		return nil
	}
	out := make([]Identity, 0, len(d.members))
	for _, id := range d.members {
		out = append(out, id)
	}
	return out
}

// Externals returns roster members without a stable worker id.
func (d *Directory) Externals() []Member {
	if d == nil {
		return nil
	}
	var out []Member
	for _, id := range d.members {
		if id.Kind == External {
			out = append(out, Member{Name: id.Name, External: true, Company: id.Company})
		}
	}
	return out
}

// Lookup returns the roster identity stored under k.
func (d *Directory) Lookup(k Key) (Identity, bool) {
	if d == nil {
		return Identity{}, false
	}
	id, ok := d.members[k]
	return id, ok
}
