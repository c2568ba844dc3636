package slotfill

import (
	"fmt"
	"strings"
)

// Services lists the four help categories in menu order.
var Services = []string{
	"1. Want the product manual or care guide",
	"2. Help searching a part for their product model",
	"3. Looking for help with a problem/symptoms in the product",
	"4. Looking for installation information",
}

// IdentifierPrompt opens a dialogue cycle.
func IdentifierPrompt(appliance string) string {
	return fmt.Sprintf("I can help you with your %s. Could you please provide your appliance's model number? "+
		"It's usually found on a label inside the appliance.", appliance)
}

// AskIdentifier re-asks when no model number could be extracted.
func AskIdentifier(appliance string) string {
	return fmt.Sprintf("Could you please provide your %s's model number? It's usually found on a label inside the appliance.", appliance)
}

// InvalidIdentifier re-asks after a rejected model number.
func InvalidIdentifier(appliance string) string {
	return fmt.Sprintf("That doesn't appear to be a valid model number. Could you please double-check the model number "+
		"on your appliance? It's usually found on a label inside the %s.", appliance)
}

// ServicesMenu renders the services menu for an appliance.
func ServicesMenu(appliance string) string {
	return fmt.Sprintf("Thank you. Here are the services I can provide for your %s:\n%s\n\nWhat kind of help do you need?",
		appliance, strings.Join(Services, "\n"))
}

// Acknowledgement confirms a completed slot set before dispatch.
func Acknowledgement(help, identifier, details string) string {
	return fmt.Sprintf("I'll help you find %s information for model %s. Specifically about: %s", help, identifier, details)
}
