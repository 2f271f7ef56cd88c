package vk

import "regexp"

const (
	commandGpInfo  eventCommand = `gpPage_\d{4}_\d{1,2}`
	commandGpList  eventCommand = `gpListPage_\d{4}_\d+`
	commandNothing eventCommand = ``
)

type eventCommand string

func getEventCommand(event string) eventCommand {
	eventCommands := []eventCommand{
		commandGpInfo,
		commandGpList,
	}

	for _, eventCommand := range eventCommands {
		matched, _ := regexp.MatchString(string(eventCommand), event)

		if matched {
			return eventCommand
		}
	}

	return commandNothing
}
