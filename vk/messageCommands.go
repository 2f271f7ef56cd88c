package vk

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	commandDrSt             command = `личн.*зач[её]т`
	commandConsStFull       command = `куб.*конструктор`
	commandConsSt           command = `кк`
	commandLstRc            command = `результат.?\sгонк`
	commandLstQual          command = `результат.?\sквал`
	commandLstSpr           command = `результат.?\sспринт`
	commandTrends           command = `статистик`
	commandHelp             command = `что умеешь`
	commandHello            command = `начать`
	commandDaysAfterRace    command = `дней без (формулы|f1)`
	commandDaysAfterRaceCut command = `дбф`
	commandGPs              command = `этапы`
	commandRaceRes          command = `raceRes_\d{4}_\d{1,2}`
	commandQualRes          command = `qualRes_\d{4}_\d{1,2}`
	commandSprRes           command = `sprRes_\d{4}_\d{1,2}`
	commandUnknown          command = ``
)

type command string

var commandOrder = []command{
	commandDrSt,
	commandConsStFull,
	commandLstRc,
	commandLstQual,
	commandLstSpr,
	commandTrends,
	commandHelp,
	commandHello,
	commandDaysAfterRace,
	commandDaysAfterRaceCut,
	commandGPs,
	commandRaceRes,
	commandQualRes,
	commandSprRes,
	commandConsSt,
}

var commandRegexps = compileCommands()

func compileCommands() map[command]*regexp.Regexp {
	out := make(map[command]*regexp.Regexp, len(commandOrder))
	for _, c := range commandOrder {
		out[c] = regexp.MustCompile(string(c))
	}
	return out
}

func getCommand(message string) command {
	for _, command := range commandOrder {
		if commandRegexps[command].MatchString(message) {
			return command
		}
	}

	return commandUnknown
}

var yearRe = regexp.MustCompile(`(^|\s)(19[5-9]\d|20\d\d)(\s|$)`)

// seasonFromText picks a year mentioned in the message, or the year of the
// message date.
func seasonFromText(text string, userDate time.Time) int {
	if m := yearRe.FindStringSubmatch(text); m != nil {
		season, _ := strconv.Atoi(m[2])
		return season
	}
	return userDate.Year()
}

// splitPayload reads "{prefix}_{season}_{round}" payload commands.
func splitPayload(cmd string) (season, round int, ok bool) {
	parts := strings.Split(cmd, "_")
	if len(parts) != 3 {
		return 0, 0, false
	}
	season, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	round, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return season, round, true
}
