package store

import (
	"sort"

	"log/slog"
)

// Preferences exposes typed accessors over the mirror's preference keys.
// All reads tolerate a missing or corrupt file and return zero values;
// preferences are never worth failing an operation over.
type Preferences struct {
	store *LocalStore
}

func NewPreferences(store *LocalStore) *Preferences {
	return &Preferences{store: store}
}

func (p *Preferences) LastSelectedAlbum() string {
	var id string
	if _, err := p.store.Get(KeyLastSelected, &id); err != nil {
		p.warn(KeyLastSelected, err)
	}
	return id
}

func (p *Preferences) SetLastSelectedAlbum(id string) {
	if err := p.store.Set(KeyLastSelected, id); err != nil {
		p.warn(KeyLastSelected, err)
	}
}

// StarredTeams returns the starred team names in sorted order.
func (p *Preferences) StarredTeams() []string {
	var teams []string
	if _, err := p.store.Get(KeyStarredTeams, &teams); err != nil {
		p.warn(KeyStarredTeams, err)
	}
	sort.Strings(teams)
	return teams
}

func (p *Preferences) StarTeam(team string) {
	teams := p.StarredTeams()
	for _, t := range teams {
		if t == team {
			return
		}
	}
	teams = append(teams, team)
	sort.Strings(teams)
	if err := p.store.Set(KeyStarredTeams, teams); err != nil {
		p.warn(KeyStarredTeams, err)
	}
}

func (p *Preferences) UnstarTeam(team string) {
	teams := p.StarredTeams()
	out := teams[:0]
	for _, t := range teams {
		if t != team {
			out = append(out, t)
		}
	}
	if err := p.store.Set(KeyStarredTeams, out); err != nil {
		p.warn(KeyStarredTeams, err)
	}
}

func (p *Preferences) IsTeamStarred(team string) bool {
	for _, t := range p.StarredTeams() {
		if t == team {
			return true
		}
	}
	return false
}

// RenameStarredTeam keeps stars attached through a team rename.
func (p *Preferences) RenameStarredTeam(oldName, newName string) {
	if !p.IsTeamStarred(oldName) {
		return
	}
	p.UnstarTeam(oldName)
	p.StarTeam(newName)
}

// AlbumOrder returns the user-arranged album id order, or nil when the
// user never reordered.
func (p *Preferences) AlbumOrder() []string {
	var order []string
	if _, err := p.store.Get(KeyAlbumOrder, &order); err != nil {
		p.warn(KeyAlbumOrder, err)
	}
	return order
}

func (p *Preferences) SetAlbumOrder(ids []string) {
	if err := p.store.Set(KeyAlbumOrder, ids); err != nil {
		p.warn(KeyAlbumOrder, err)
	}
}

func (p *Preferences) warn(key string, err error) {
	slog.Warn("Preference access failed",
		slog.String("type", "sys"),
		slog.String("key", key),
		slog.Any("error", err),
	)
}
