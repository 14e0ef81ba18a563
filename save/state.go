package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/afero"
)

const stateFileName = "state.json"

// AppState is remembered between runs.
type AppState struct {
	Nickname    string    `json:"nickname"`
	LastChannel string    `json:"last_channel"`
	LastSeen    time.Time `json:"last_seen"`
}

type AppStateManager struct {
	fs  afero.Fs
	dir string
}

func NewAppStateManager(fs afero.Fs, dir string) *AppStateManager {
	return &AppStateManager{fs: fs, dir: dir}
}

func (a *AppStateManager) SaveAppState(state AppState) error {
	f, err := openCreateFile(a.fs, a.dir, stateFileName)
	if err != nil {
		return err
	}

	defer f.Close()

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if err := f.Truncate(0); err != nil {
		return err
	}

	if _, err := f.WriteAt(data, 0); err != nil {
		return err
	}

	return nil
}

// LoadAppState returns the zero state when nothing was saved yet or the file is corrupt.
func (a *AppStateManager) LoadAppState() (AppState, error) {
	f, err := openCreateFile(a.fs, a.dir, stateFileName)
	if err != nil {
		return AppState{}, err
	}

	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return AppState{}, err
	}

	if len(data) == 0 {
		return AppState{}, nil
	}

	state := AppState{}
	if err := json.Unmarshal(data, &state); err != nil {
		syntaxErr := &json.SyntaxError{}
		if errors.As(err, &syntaxErr) {
			return AppState{}, nil
		}
		return AppState{}, err
	}

	return state, nil
}

// Nickname returns the remembered nickname, generating and saving one on first use.
func (a *AppStateManager) Nickname() (string, error) {
	state, err := a.LoadAppState()
	if err != nil {
		return "", err
	}

	if state.Nickname != "" {
		return state.Nickname, nil
	}

	state.Nickname = RandomNickname()
	if err := a.SaveAppState(state); err != nil {
		return "", fmt.Errorf("failed to save nickname: %w", err)
	}

	return state.Nickname, nil
}

// RandomNickname returns a guest nickname like AppleTV4821.
func RandomNickname() string {
	return fmt.Sprintf("AppleTV%d", rand.IntN(10_000))
}
