package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
)

//go:embed template/system.txt
var systemRaw string

// Loader builds the system turns that open every outbound model request.
type Loader struct {
	overridePath string
}

// NewLoader reads overridePath on every request when set, so the prompt can be edited without a restart.
func NewLoader(overridePath string) *Loader {
	return &Loader{overridePath: strings.TrimSpace(overridePath)}
}

func DefaultSystemPrompt() string {
	return strings.TrimSpace(systemRaw)
}

func (l *Loader) SystemPrompt() string {
	if l == nil || l.overridePath == "" {
		return DefaultSystemPrompt()
	}

	raw, err := os.ReadFile(l.overridePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", l.overridePath).Msg("read system prompt failed; using embedded prompt")
		}
		return DefaultSystemPrompt()
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return DefaultSystemPrompt()
	}
	return text
}

// SystemTurns returns the system prompt plus, when a user is selected, their profile.
func (l *Loader) SystemTurns(user *records.User) []contractx.Turn {
	turns := []contractx.Turn{contractx.SystemTurn(l.SystemPrompt())}
	if info, ok := UserInfoTurn(user); ok {
		turns = append(turns, info)
	}
	return turns
}

func UserInfoTurn(user *records.User) (contractx.Turn, bool) {
	if user == nil || user.UserID == "" {
		return contractx.Turn{}, false
	}

	var b strings.Builder
	b.WriteString("現在のユーザ情報:\n")
	fmt.Fprintf(&b, "  ユーザID: %s\n", user.UserID)
	fmt.Fprintf(&b, "  氏名: %s\n", user.UserName)
	fmt.Fprintf(&b, "  会社ID: %s\n", user.CompanyID)
	fmt.Fprintf(&b, "  会社名: %s\n", user.CompanyName)
	b.WriteString("\n必要に応じてこれらを回答に活用してください。")
	return contractx.SystemTurn(b.String()), true
}
