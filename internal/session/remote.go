package session

import (
	"moodboard/internal/syncchan"
)

func (s *Session) receiveLoop(stream <-chan syncchan.Message) {
	defer s.wg.Done()
	for msg := range stream {
		s.handle(msg)
	}
}

// handle applies a message from another window. Remote applications never mark the board
// dirty and are never re-broadcast. Messages naming identities this window does not know
// are dropped; a later full order or state response reconciles them. Replayed stored
// revisions are dropped while this window has unsaved edits.
func (s *Session) handle(msg syncchan.Message) {
	if msg.Origin == s.id || msg.BoardID != s.boardID {
		return
	}
	if msg.Type == syncchan.TypeStateRequest {
		s.answerStateRequest()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if msg.Origin == syncchan.PollOrigin && s.sched.Pending() {
		// Replaying a stored revision over unsaved edits would revert them. The pending
		// save supersedes it.
		s.mu.Unlock()
		s.log.Debug("skipped stored revision over unsaved edits", "type", msg.Type)
		return
	}
	change, ok := s.apply(msg)
	s.mu.Unlock()
	if !ok {
		s.log.Debug("dropped sync message", "type", msg.Type, "layer", msg.LayerID, "from", msg.Origin)
		return
	}
	change.Remote = true
	s.emit(change)
}

// apply runs with s.mu held.
func (s *Session) apply(msg syncchan.Message) (Change, bool) {
	switch msg.Type {
	case syncchan.TypeOrderChanged:
		return Change{Kind: ChangeOrder, IDs: s.st.Apply(msg.Order)}, true

	case syncchan.TypeStateResponse:
		changed := s.st.Apply(msg.Order)
		s.groups.Replace(msg.Groups)
		if msg.BgColor != "" {
			s.board.BgColor = msg.BgColor
		}
		return Change{Kind: ChangeBoard, IDs: changed}, true

	case syncchan.TypeVisibilityChanged:
		l, _, ok := s.st.Find(msg.LayerID)
		if !ok || msg.Visible == nil {
			return Change{}, false
		}
		l.Visible = *msg.Visible
		return Change{Kind: ChangeVisibility, IDs: []string{l.ID}}, true

	case syncchan.TypeFiltersChanged:
		l, _, ok := s.st.Find(msg.LayerID)
		if !ok {
			return Change{}, false
		}
		if msg.Filters == nil {
			l.Filters = nil
		} else {
			f := *msg.Filters
			l.Filters = &f
		}
		return Change{Kind: ChangeFilters, IDs: []string{l.ID}}, true

	case syncchan.TypeBackgroundChanged:
		if msg.BgColor == "" {
			return Change{}, false
		}
		s.board.BgColor = msg.BgColor
		return Change{Kind: ChangeBackground}, true

	case syncchan.TypeImageAdded:
		if msg.Layer == nil || !s.st.Adopt(*msg.Layer) {
			return Change{}, false
		}
		return Change{Kind: ChangeLayers, IDs: []string{msg.Layer.ID}}, true

	case syncchan.TypeLayerRemoved:
		if !s.st.Detach(msg.LayerID) {
			return Change{}, false
		}
		return Change{Kind: ChangeLayers, IDs: []string{msg.LayerID}}, true

	case syncchan.TypeGroupsChanged:
		s.groups.Replace(msg.Groups)
		return Change{Kind: ChangeGroups}, true
	}
	return Change{}, false
}

func (s *Session) answerStateRequest() {
	if s.role != RolePrimary {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	msg := syncchan.Message{
		Type:    syncchan.TypeStateResponse,
		Order:   s.st.Flatten(),
		Groups:  cloneGroups(s.groups.List()),
		BgColor: s.board.BgColor,
	}
	s.mu.Unlock()
	s.publish(msg)
}
