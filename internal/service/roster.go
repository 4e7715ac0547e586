package service

import (
	"strings"

	"campusconnect.id/communityhub/internal/dto"
)

// ParseRoster reads a bulk import roster: newline-delimited rows of
// "username, password, display_name". An optional header row (detected by
// the token "username", case-insensitive) is skipped; a missing password
// defaults to the username; rows with an empty username are discarded.
// The format is a plain three-field comma split, not quoted CSV.
func ParseRoster(text string) []dto.CreateUserInput {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	start := 0
	if strings.Contains(strings.ToLower(lines[0]), "username") {
		start = 1
	}

	var users []dto.CreateUserInput
	for _, line := range lines[start:] {
		fields := strings.SplitN(line, ",", 3)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		username := fields[0]
		if username == "" {
			continue
		}

		password := ""
		if len(fields) > 1 {
			password = fields[1]
		}
		if password == "" {
			password = username
		}

		var displayName *string
		if len(fields) > 2 && fields[2] != "" {
			name := fields[2]
			displayName = &name
		}

		users = append(users, dto.CreateUserInput{
			Username:    username,
			Password:    password,
			DisplayName: displayName,
		})
	}

	return users
}
