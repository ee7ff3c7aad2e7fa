package report

import "fmt"

// FollowUp returns the four manual steps that connect the deployed webhook
// to the messaging provider. endpoint may be empty when the provisioning
// output did not include it.
func FollowUp(endpoint string) []string {
	first := "Copy the webhook URL shown in the Terraform outputs above."
	if endpoint != "" {
		first = fmt.Sprintf("Copy the webhook URL: %s", endpoint)
	}

	return []string{
		first,
		"Open the Twilio console: Messaging > Try it out > Send a WhatsApp message > Sandbox settings.",
		`Paste the URL into "When a message comes in" and select method POST.`,
		"Save, then send a test message from WhatsApp to the sandbox number.",
	}
}
