package vk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/SevereCloud/vksdk/v2/api/params"
	"github.com/SevereCloud/vksdk/v2/events"
	"github.com/SevereCloud/vksdk/v2/longpoll-bot"

	"racebot-stats/models"
)

const (
	kbRows = 2
	kbCols = 4
)

const helloMessage = `Привет! Я бот, который делится статистикой F1 :)
Для того чтобы подробнее познакомиться с моими возможностями напиши мне "Что умеешь?".

Приятного пользования :)`

const helpMessage = `Команды, которые я понимаю (могу их прочесть в твоём сообщении среди других слов):
• личный зачёт - положение гонщиков в личном зачёте
• кубок конструкторов или кк - положение команд в кубке конструкторов
• результат гонки - результат последней прошедшей гонки F1
• результат квалы - результат последней квалификации
• результат спринта - результат последнего спринта
• статистика - квалификация, обгоны и победы с поула за сезон
• этапы - список этапов сезона
• дней без формулы/F1 - количество дней с последней гонки F1

Добавь год, чтобы узнать о прошлом сезоне, например "личный зачёт 2021".`

const failMessage = "Что-то пошло не так. Попробуй позже :("

type messageService interface {
	GetDriverStandingsMessage(ctx context.Context, season int) (string, error)
	GetConstructorStandingsMessage(ctx context.Context, season int) (string, error)
	GetRaceResultsMessage(ctx context.Context, season int, raceID string) (string, error)
	GetQualifyingResultsMessage(ctx context.Context, season int, raceID string) (string, error)
	GetSprintResultsMessage(ctx context.Context, season int, raceID string) (string, error)
	GetTrendsMessage(ctx context.Context, season int) (string, error)
	GetCountDaysAfterRaceMessage(ctx context.Context, userDate time.Time) (string, error)
	Snapshot(ctx context.Context, season int) (*models.Snapshot, error)
}

type VkAPI struct {
	lp             *longpoll.LongPoll
	messageService messageService
	log            *slog.Logger
	ctx            context.Context
}

// NewVKAPI connects to the group long poll. A zero groupID is looked up from
// the token.
func NewVKAPI(token string, groupID int, messageService messageService, log *slog.Logger) (*VkAPI, error) {
	vk := api.NewVK(token)

	if groupID == 0 {
		group, err := vk.GroupsGetByID(api.Params{})
		if err != nil {
			return nil, fmt.Errorf("error groups get by id: %w", err)
		}
		if len(group) == 0 {
			return nil, errors.New("no group for token")
		}
		groupID = group[0].ID
	}

	lp, err := longpoll.NewLongPoll(vk, groupID)
	if err != nil {
		return nil, fmt.Errorf("error creating new long poll: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	return &VkAPI{lp: lp, messageService: messageService, log: log.With(slog.String("bot", "vk"))}, nil
}

// Run handles events until ctx is done.
func (vk *VkAPI) Run(ctx context.Context) error {
	vk.ctx = ctx
	vk.messageHandler()
	vk.eventHandler()

	go func() {
		<-ctx.Done()
		vk.lp.Shutdown()
	}()

	vk.log.Info("Start longpoll")
	if err := vk.lp.Run(); err != nil {
		return fmt.Errorf("error running long poll: %w", err)
	}
	return nil
}

// answer maps a text or payload command to the reply text and an optional
// keyboard.
func (vk *VkAPI) answer(ctx context.Context, cmd command, text string, payloadCmd string, userDate time.Time) (string, *string, error) {
	season := seasonFromText(text, userDate)

	switch cmd {
	case commandRaceRes, commandQualRes, commandSprRes:
		payloadSeason, round, ok := splitPayload(payloadCmd)
		if !ok {
			return "", nil, fmt.Errorf("bad payload %q", payloadCmd)
		}
		raceID := strconv.Itoa(round)
		switch cmd {
		case commandRaceRes:
			msg, err := vk.messageService.GetRaceResultsMessage(ctx, payloadSeason, raceID)
			return msg, nil, err
		case commandQualRes:
			msg, err := vk.messageService.GetQualifyingResultsMessage(ctx, payloadSeason, raceID)
			return msg, nil, err
		default:
			msg, err := vk.messageService.GetSprintResultsMessage(ctx, payloadSeason, raceID)
			return msg, nil, err
		}

	case commandHello:
		return helloMessage, nil, nil

	case commandHelp:
		return helpMessage, nil, nil

	case commandDrSt:
		msg, err := vk.messageService.GetDriverStandingsMessage(ctx, season)
		return msg, nil, err

	case commandConsStFull, commandConsSt:
		msg, err := vk.messageService.GetConstructorStandingsMessage(ctx, season)
		return msg, nil, err

	case commandLstRc:
		msg, err := vk.messageService.GetRaceResultsMessage(ctx, season, "last")
		return msg, nil, err

	case commandLstQual:
		msg, err := vk.messageService.GetQualifyingResultsMessage(ctx, season, "last")
		return msg, nil, err

	case commandLstSpr:
		msg, err := vk.messageService.GetSprintResultsMessage(ctx, season, "last")
		return msg, nil, err

	case commandTrends:
		msg, err := vk.messageService.GetTrendsMessage(ctx, season)
		return msg, nil, err

	case commandDaysAfterRace, commandDaysAfterRaceCut:
		msg, err := vk.messageService.GetCountDaysAfterRaceMessage(ctx, userDate)
		return msg, nil, err

	case commandGPs:
		kb, err := vk.seasonKeyboard(ctx, season, 1)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("Этапы F1 %d:", season), &kb, nil
	}

	return "", nil, nil
}

func (vk *VkAPI) seasonKeyboard(ctx context.Context, season, page int) (string, error) {
	snap, err := vk.messageService.Snapshot(ctx, season)
	if err != nil {
		return "", err
	}
	kb, err := makeKeyboard(season, kbRows, kbCols, page, len(snap.Races), true)
	if err != nil {
		return "", err
	}
	return keyboardString(kb)
}

func (vk *VkAPI) messageHandler() {
	vk.lp.MessageNew(func(_ context.Context, obj events.MessageNewObject) {
		vk.log.Info(
			"MESSAGE info",
			slog.Int("peer_id", obj.Message.PeerID),
			slog.String("text", obj.Message.Text))

		userDate := time.Unix(int64(obj.Message.Date), 0)
		messageText := strings.ToLower(obj.Message.Text)

		textPayload, err := extractCommand(obj.Message.Payload)
		if err != nil {
			vk.log.Error("Error reading payload", slog.Any("error", err))
		}

		var cmd command
		var payloadCmd string
		if textPayload != nil {
			payloadCmd = *textPayload
			cmd = getCommand(payloadCmd)
		} else {
			cmd = getCommand(messageText)
		}
		if cmd == commandUnknown {
			vk.log.Info("Команда в сообщении не распознана", slog.String("text", obj.Message.Text))
			return
		}

		messageToUser, keyboard, err := vk.answer(vk.ctx, cmd, messageText, payloadCmd, userDate)
		if err != nil {
			vk.log.Error("Error answering command", slog.String("command", string(cmd)), slog.Any("error", err))
			messageToUser, keyboard = failMessage, nil
		}

		err = sendMessageToUser(messageToUser, obj.Message.PeerID, vk.lp.VK, keyboard)
		if err != nil {
			vk.log.Error("Error with sending message-answer to user", slog.Int("peer_id", obj.Message.PeerID), slog.String("command", string(cmd)), slog.Any("error", err))
		}
	})
}

func (vk *VkAPI) eventHandler() {
	vk.lp.MessageEvent(func(_ context.Context, obj events.MessageEventObject) {
		vk.log.Info(
			"EVENT info",
			slog.Int("peer_id", obj.PeerID),
			slog.Any("text", obj.Payload))

		payloadCommand, err := extractCommand(string(obj.Payload))
		if err != nil || payloadCommand == nil {
			vk.log.Error("Error reading payload", slog.Any("error", err))
			return
		}
		season, n, ok := splitPayload(*payloadCommand)

		switch getEventCommand(*payloadCommand) {
		case commandGpList:
			if !ok {
				break
			}
			strKb, err := vk.seasonKeyboard(vk.ctx, season, n)
			if err != nil {
				vk.log.Error("Error making keyboard", slog.Any("error", err))
				break
			}

			err = sendMessageToUser("Обновление", obj.PeerID, vk.lp.VK, &strKb)
			if err != nil {
				vk.log.Error("Error with sending message-answer to command `commandGpList` to user", slog.Int("peer_id", obj.PeerID), slog.Any("error", err))
			}

		case commandGpInfo:
			if !ok {
				break
			}
			messageToUser, err := vk.messageService.GetRaceResultsMessage(vk.ctx, season, strconv.Itoa(n))
			if err != nil {
				vk.log.Error("Error with race result", slog.Int("season", season), slog.Int("round", n), slog.Any("error", err))
				messageToUser = failMessage
			}

			var keyboard *string
			if race, ok := vk.race(season, n); ok {
				kb, err := keyboardString(raceKeyboard(season, n, race.HasSprint))
				if err == nil {
					keyboard = &kb
				}
			}

			err = sendMessageToUser(messageToUser, obj.PeerID, vk.lp.VK, keyboard)
			if err != nil {
				vk.log.Error("Error with sending message-answer to command `commandGpInfo` to user", slog.Int("peer_id", obj.PeerID), slog.Any("error", err))
			}
		}

		err = sendEventMessageToUser(vk.lp.VK, obj.PeerID, obj.EventID, obj.UserID)
		if err != nil {
			vk.log.Error("Error with sending event-answer to user", slog.Int("peer_id", obj.PeerID), slog.Any("error", err))
		}
	})
}

func (vk *VkAPI) race(season, round int) (models.Race, bool) {
	snap, err := vk.messageService.Snapshot(vk.ctx, season)
	if err != nil {
		return models.Race{}, false
	}
	return snap.Race(round)
}

func sendMessageToUser(messageToUser string, peerID int, vk *api.VK, keyboard *string) error {
	b := params.NewMessagesSendBuilder()
	b.Message(messageToUser)
	b.RandomID(0)
	b.PeerID(peerID)

	if keyboard != nil {
		b.Keyboard(*keyboard)
	}

	msgId, err := vk.MessagesSend(b.Params)
	if err != nil {
		return fmt.Errorf("error sending message to user: %w", err)
	}
	slog.Debug("Message-answer sent", slog.Int("id", msgId))
	return nil
}

func sendEventMessageToUser(vk *api.VK, peerID int, eventID string, userID int) error {
	prms := params.NewMessagesSendMessageEventAnswerBuilder()
	prms.PeerID(peerID)
	prms.EventID(eventID)
	prms.UserID(userID)

	resp, err := vk.MessagesSendMessageEventAnswer(prms.Params)
	if err != nil {
		return fmt.Errorf("error sending event answer to user: %w", err)
	}
	slog.Debug("Response sent MessageEvent", slog.Int("id", resp))
	return nil
}
