package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type mockRepo struct {
	mu        sync.Mutex
	items     []*Notification
	createErr error
}

func (m *mockRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]*Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Notification
	for _, n := range m.items {
		if n.PatientID == patientID {
			matched = append(matched, n)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].SentAt.After(matched[j].SentAt) })
	total := len(matched)
	if offset >= total {
		return []*Notification{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type mockSMS struct {
	sent []string
	err  error
}

func (m *mockSMS) SendSMS(_ context.Context, to, body string) error {
	m.sent = append(m.sent, to+": "+body)
	return m.err
}

var errStore = errors.New("connection refused")
