package users

import "strings"

// Someone stands in for a user that could not be resolved.
const Someone = "Someone"

// DisplayName formats a user according to the name display preference. A
// nil user yields Someone, or "" when useFallback is false. The result is
// never empty for a non-nil user: a user with no name at all is Someone.
func DisplayName(user *User, preference string, useFallback bool) string {
	if user == nil {
		if useFallback {
			return Someone
		}
		return ""
	}

	var name string
	switch preference {
	case DisplayNicknameFullName:
		name = user.Nickname
		if name == "" {
			name = user.FullName()
		}
	case DisplayFullName:
		name = user.FullName()
	case DisplayUsername:
		name = usernameWithDetails(*user)
	default:
		name = user.Username
	}

	if strings.TrimSpace(name) != "" {
		return name
	}
	if strings.TrimSpace(user.Username) != "" {
		return user.Username
	}
	return Someone
}

func usernameWithDetails(u User) string {
	fullName := u.FullName()
	switch {
	case fullName != "" && u.Nickname != "":
		return u.Username + " - " + fullName + " (" + u.Nickname + ")"
	case fullName != "":
		return u.Username + " - " + fullName
	case u.Nickname != "":
		return u.Username + " (" + u.Nickname + ")"
	default:
		return u.Username
	}
}
