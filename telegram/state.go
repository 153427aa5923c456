package telegram

import (
	"errors"
	"io"
	"net/http"

	"psychebot/psychtest"
)

var errNoTranscriber = errors.New("no speech backend configured")

type stage int

const (
	stageIdle stage = iota
	stageAwaitingName
	stageAwaitingAge
	stageInTest
	stageAwaitingTopupAmount
	stageAwaitingScreenshot
)

// chatState tracks where one chat is in its conversation flow. Access goes
// through the Telegram mutex; handlers never hold it across sends.
type chatState struct {
	Stage          stage
	PendingTestIdx int
	UserName       string
	UserAge        int
	Session        *psychtest.Session
	PackageTestID  int64
}

func (t *Telegram) state(chatID int64) *chatState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[chatID]
	if !ok {
		s = &chatState{}
		t.states[chatID] = s
	}
	return s
}

func (t *Telegram) resetState(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[chatID] = &chatState{}
}

func downloadFile(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
