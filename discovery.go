package main

import "strings"

// categoryAll disables the category filter.
const categoryAll = "ALL"

// Query filters the consumer-facing farmer list.
type Query struct {
	Term     string
	Category string
}

func (q Query) matches(f Farmer) bool {
	if !f.IsApproved {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(q.Term)); term != "" {
		if !strings.Contains(strings.ToLower(f.Name), term) && !strings.Contains(strings.ToLower(f.Description), term) {
			return false
		}
	}
	if q.Category == "" || strings.EqualFold(q.Category, categoryAll) {
		return true
	}
	for _, p := range f.Products {
		if strings.EqualFold(string(p.Category), q.Category) {
			return true
		}
	}
	return false
}

// Discover returns approved farmers matching q, newest registration first.
func (s *Store) Discover(q Query) []Farmer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Farmer{}
	for _, f := range s.farmers {
		if q.matches(f) {
			out = append(out, cloneFarmer(f))
		}
	}
	return out
}

// MapPins projects Discover results for the map layer.
func (s *Store) MapPins(q Query) []MapPin {
	farmers := s.Discover(q)
	pins := make([]MapPin, 0, len(farmers))
	for _, f := range farmers {
		pins = append(pins, MapPin{
			ID:      f.ID,
			Name:    f.Name,
			Address: f.Address,
			Lat:     f.Coordinates.Lat,
			Lng:     f.Coordinates.Lng,
			Link:    farmerLink(f.ID),
		})
	}
	return pins
}

// Favorites returns followed farmers that are still listed and approved.
func (s *Store) Favorites() []Farmer {
	s.mu.Lock()
	defer s.mu.Unlock()
	followed := make(map[string]bool, len(s.followed))
	for _, id := range s.followed {
		followed[id] = true
	}
	out := []Farmer{}
	for _, f := range s.farmers {
		if f.IsApproved && followed[f.ID] {
			out = append(out, cloneFarmer(f))
		}
	}
	return out
}

// Stats summarizes the directory for the admin dashboard.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Pending: []Farmer{}}
	for _, f := range s.farmers {
		switch {
		case !f.IsApproved:
			st.Pending = append(st.Pending, cloneFarmer(f))
		case f.Verified:
			st.Approved++
			st.Verified++
		default:
			st.Approved++
		}
	}
	return st
}
