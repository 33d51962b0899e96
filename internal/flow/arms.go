package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/Hamraz/internal/models"
)

// Study-arm bot tuning. The control arm follows a scripted counseling
// outline in a single prompt with near-deterministic phrasing; the
// placebo arm is a free-form companion with conversational variety.
const (
	controlTemperature = 0.1
	placeboTemperature = 0.4
	// armHistoryWindow is how many recent messages the non-protocol arms
	// see beyond the rolling summary.
	armHistoryWindow = 6
)

const controlPrompt = `تو یک همراه فارسی‌زبان مهربان هستی. گفتگو را به این ترتیب پیش ببر:
اول سلام و احوال‌پرسی، بعد پرسیدن از احساس امروز کاربر، بعد شنیدن ماجرای پشت آن
احساس، و در پایان جمع‌بندی و خداحافظی گرم. هر بار فقط یک قدم جلو برو و فقط یک
سوال بپرس. هیچ تمرین یا تکنیک درمانی پیشنهاد نکن. جواب‌هایت کوتاه باشد.`

const placeboPrompt = `تو یک هم‌صحبت فارسی‌زبان دوستانه هستی. با کاربر گرم و محاوره‌ای
گفتگو کن، به حرف‌هایش علاقه نشان بده و سوال‌های باز بپرس. از توصیه، تحلیل یا
پیشنهاد تمرین خودداری کن. جواب‌هایت کوتاه باشد.`

// runControlTurn answers with the supportive-listener bot, without the
// counseling protocol or exercises.
func (o *Orchestrator) runControlTurn(ctx context.Context, participant *models.Participant, st *models.SessionState) (models.TurnResult, error) {
	return o.runArmTurn(ctx, participant, st, controlPrompt, controlTemperature)
}

// runPlaceboTurn answers with the flat reflective bot.
func (o *Orchestrator) runPlaceboTurn(ctx context.Context, participant *models.Participant, st *models.SessionState) (models.TurnResult, error) {
	return o.runArmTurn(ctx, participant, st, placeboPrompt, placeboTemperature)
}

// runArmTurn is the shared turn shape of the non-protocol arms: memory
// summary plus a short history window, no state routing.
func (o *Orchestrator) runArmTurn(ctx context.Context, participant *models.Participant, st *models.SessionState, systemPrompt string, temperature float64) (models.TurnResult, error) {
	participantID := participant.ID
	st.TurnsInState++
	st.TurnsTotal++

	summary, err := o.memory.Summary(participantID)
	if err != nil {
		return models.TurnResult{}, err
	}
	if summary != "" {
		systemPrompt += "\n\nخلاصه‌ی شناخت ما از کاربر:\n" + summary
	}
	if avoid := o.guard.AvoidanceContext(participantID, CategoryGeneral); avoid != "" {
		systemPrompt += "\n\n" + avoid
	}

	history, err := o.memory.Unprocessed(participantID)
	if err != nil {
		return models.TurnResult{}, err
	}
	if len(history) > armHistoryWindow {
		history = history[len(history)-armHistoryWindow:]
	}

	reply, err := o.genaiClient.GenerateWithMessages(ctx, buildChatMessages(systemPrompt, history), temperature)
	if err != nil {
		return models.TurnResult{}, err
	}
	reply = strings.TrimSpace(reply)

	if _, err := o.memory.AddMessage(participantID, reply, false, st.CurrentSessionID, st.CurrentState); err != nil {
		return models.TurnResult{}, err
	}
	o.guard.Record(participantID, CategoryGeneral, reply)
	st.LastReply = reply

	result := models.TurnResult{Reply: &reply, State: string(st.CurrentState)}
	if recs, rErr := o.suggestor.Recommend(ctx, reply, summary); rErr != nil {
		slog.Error("Orchestrator recommendation generation failed", "error", rErr, "participantID", participantID)
	} else {
		result.Recommendations = recs
	}
	return result, nil
}
