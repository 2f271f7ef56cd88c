package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

type messageService interface {
	GetDriverStandingsMessage(ctx context.Context, season int) (string, error)
	GetConstructorStandingsMessage(ctx context.Context, season int) (string, error)
	GetRaceResultsMessage(ctx context.Context, season int, raceID string) (string, error)
	GetQualifyingResultsMessage(ctx context.Context, season int, raceID string) (string, error)
	GetSprintResultsMessage(ctx context.Context, season int, raceID string) (string, error)
	GetTrendsMessage(ctx context.Context, season int) (string, error)
	GetCountDaysAfterRaceMessage(ctx context.Context, userDate time.Time) (string, error)
}

const helpMessage = `Команды, которые я понимаю:
/driverstandings [сезон] - личный зачёт
/constructorstandings [сезон] - кубок конструкторов
/lastrace - результат последней гонки
/race [сезон] N - результат N-го этапа
/qualifying [сезон] N - результат квалификации
/sprint [сезон] N - результат спринта
/trends [сезон] - статистика сезона
/daysafterrace - дней без F1`

const failMessage = "Что-то пошло не так. Попробуй позже :("

type TgAPI struct {
	bot            *telego.Bot
	updates        <-chan telego.Update
	messageService messageService
	handler        *th.BotHandler
	log            *slog.Logger
	ctx            context.Context
}

func NewTGAPI(token string, messageService messageService, log *slog.Logger) (*TgAPI, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("error create tg bot from token: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(nil)
	if err != nil {
		return nil, fmt.Errorf("error taking updates from longpool: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	return &TgAPI{bot: bot, updates: updates, messageService: messageService, log: log.With(slog.String("bot", "telegram"))}, nil
}

// Run handles updates until ctx is done.
func (tg *TgAPI) Run(ctx context.Context) error {
	var err error
	tg.handler, err = th.NewBotHandler(tg.bot, tg.updates)
	if err != nil {
		return fmt.Errorf("error creating bot handler: %w", err)
	}
	tg.ctx = ctx
	tg.messageHandler()

	go func() {
		<-ctx.Done()
		tg.bot.StopLongPolling()
		tg.handler.Stop()
	}()

	tg.log.Info("Start longpoll")
	tg.handler.Start()
	return nil
}

func (tg *TgAPI) messageHandler() {
	tg.handle("start", func(ctx context.Context, req request) (string, error) {
		return helpMessage, nil
	})
	tg.handle("help", func(ctx context.Context, req request) (string, error) {
		return helpMessage, nil
	})
	tg.handle("driverstandings", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetDriverStandingsMessage(ctx, req.season)
	})
	tg.handle("constructorstandings", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetConstructorStandingsMessage(ctx, req.season)
	})
	tg.handle("lastrace", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetRaceResultsMessage(ctx, req.season, "last")
	})
	tg.handle("race", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetRaceResultsMessage(ctx, req.season, req.raceID)
	})
	tg.handle("qualifying", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetQualifyingResultsMessage(ctx, req.season, req.raceID)
	})
	tg.handle("sprint", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetSprintResultsMessage(ctx, req.season, req.raceID)
	})
	tg.handle("trends", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetTrendsMessage(ctx, req.season)
	})
	tg.handle("daysafterrace", func(ctx context.Context, req request) (string, error) {
		return tg.messageService.GetCountDaysAfterRaceMessage(ctx, req.date)
	})
}

func (tg *TgAPI) handle(command string, answer func(ctx context.Context, req request) (string, error)) {
	tg.handler.Handle(func(bot *telego.Bot, update telego.Update) {
		tg.log.Info(
			"MESSAGE info",
			slog.Int("peer_id", int(update.Message.Chat.ID)),
			slog.String("text", update.Message.Text))

		req := parseRequest(update.Message.Text, getDateFromMessage(update.Message.Date))

		messageToUser, err := answer(tg.ctx, req)
		if err != nil {
			tg.log.Error("Error with "+command, slog.Int("season", req.season), slog.Any("error", err))
			messageToUser = failMessage
		}

		_, err = bot.SendMessage(tu.Message(
			tu.ID(update.Message.Chat.ID),
			messageToUser,
		))
		if err != nil {
			tg.log.Error("Error sending message with "+command, slog.Any("error", err))
		}
	}, th.CommandEqual(command))
}

func getDateFromMessage(userTimestamp int64) time.Time {
	return time.Unix(userTimestamp, 0)
}
