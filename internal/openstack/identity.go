package openstack

import (
	"regexp"
	"strings"

	"github.com/clusterops/usage-collector/internal/usage/domain"
)

// personalProjectMarker opens the description of projects that belong to
// a single individual rather than a group. Case-sensitive by contract
// with the identity provisioning pipeline.
const personalProjectMarker = "Personal project"

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// parseEmails extracts email addresses from free text in first-occurrence
// order, duplicates included.
func parseEmails(text string) []string {
	if text == "" {
		return nil
	}
	return emailPattern.FindAllString(text, -1)
}

// buildProjectIdentities derives subject identities from project metadata.
// Personal projects yield exactly one subject-identifier identity carrying
// the project name; contact emails in the description are deliberately not
// emitted for them. All other projects yield one user-email identity per
// address found in the description.
func buildProjectIdentities(projectName, description string) []domain.Identity {
	if strings.HasPrefix(description, personalProjectMarker) {
		return []domain.Identity{{
			Scheme: domain.SchemeSubjectIdentifier,
			Value:  projectName,
		}}
	}

	var identities []domain.Identity
	for _, email := range parseEmails(description) {
		identities = append(identities, domain.Identity{
			Scheme: domain.SchemeUserEmail,
			Value:  email,
		})
	}
	return identities
}
