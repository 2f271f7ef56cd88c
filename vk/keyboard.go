package vk

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

type Payload struct {
	Command string `json:"command"`
}

type Kb struct {
	OneTime bool       `json:"one_time,omitempty"`
	Inline  bool       `json:"inline"`
	Buttons [][]Button `json:"buttons"`
}

type Button struct {
	Action ActionBtn `json:"action"`
	Color  string    `json:"color,omitempty"`
}

type ActionBtn struct {
	TypeAction string `json:"type"`
	Label      string `json:"label"`
	Payload    string `json:"payload"`
}

func payload(command string) string {
	data, _ := json.Marshal(Payload{Command: command})
	return string(data)
}

func extractCommand(payload string) (*string, error) {
	var pl Payload
	if payload != "" {
		err := json.Unmarshal([]byte(payload), &pl)
		if err != nil {
			return nil, fmt.Errorf("error unmarshal command in payload message: %w", err)
		}
		slog.Debug("Command from payload", slog.String("Command", pl.Command))
		return &pl.Command, nil
	} else {
		return nil, nil
	}
}

// makeKeyboard builds page numPage of a row x col grid of race buttons for the
// season's countEl rounds, followed by navigation buttons.
func makeKeyboard(season, row, col, numPage, countEl int, inline bool) (Kb, error) {
	var button Button
	btnsRow := make([]Button, 0, col)
	buttons := [][]Button{}
	sizeKb := row * col

	visKb := countEl - sizeKb*(numPage-1)
	if visKb > sizeKb {
		visKb = sizeKb
	}
	if numPage < 1 || visKb <= 0 {
		return Kb{}, fmt.Errorf("с заданными параметрами невозможно отобразить клавиатуру. Для количества элементов %d не существует %d-ой страницы клавиатуры при %d кнопках", countEl, numPage, sizeKb)
	}
	addedNum := sizeKb * (numPage - 1)
	for i := 1; i <= visKb; i++ {
		round := i + addedNum
		button = Button{Action: ActionBtn{TypeAction: "callback", Label: fmt.Sprintf("%d", round), Payload: payload(fmt.Sprintf("gpPage_%d_%d", season, round))}}
		btnsRow = append(btnsRow, button)

		if (i%col == 0) || (i == visKb) {
			buttons = append(buttons, btnsRow)
			btnsRow = make([]Button, 0, col)
		}
	}

	var nav []Button
	if numPage > 1 {
		nav = append(nav, Button{Action: ActionBtn{TypeAction: "callback", Label: "Назад", Payload: payload(fmt.Sprintf("gpListPage_%d_%d", season, numPage-1))}, Color: "primary"})
	}
	if addedNum+visKb < countEl {
		nav = append(nav, Button{Action: ActionBtn{TypeAction: "callback", Label: "Далее", Payload: payload(fmt.Sprintf("gpListPage_%d_%d", season, numPage+1))}, Color: "primary"})
	} else if numPage > 2 {
		nav = append(nav, Button{Action: ActionBtn{TypeAction: "callback", Label: "В начало", Payload: payload(fmt.Sprintf("gpListPage_%d_1", season))}, Color: "primary"})
	}
	if len(nav) > 0 {
		buttons = append(buttons, nav)
	}

	return Kb{Inline: inline, Buttons: buttons}, nil
}

// raceKeyboard offers the other sessions of one round.
func raceKeyboard(season, round int, hasSprint bool) Kb {
	btns := []Button{
		{Action: ActionBtn{TypeAction: "text", Label: "Квалификация", Payload: payload(fmt.Sprintf("qualRes_%d_%d", season, round))}},
	}
	if hasSprint {
		btns = append(btns, Button{Action: ActionBtn{TypeAction: "text", Label: "Спринт", Payload: payload(fmt.Sprintf("sprRes_%d_%d", season, round))}})
	}
	return Kb{Inline: true, Buttons: [][]Button{btns}}
}

func keyboardString(kb Kb) (string, error) {
	jsKb, err := json.Marshal(kb)
	if err != nil {
		return "", fmt.Errorf("error marshal keyboard: %w", err)
	}
	return string(jsKb), nil
}
