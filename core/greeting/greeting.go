// Package greeting builds time-of-day greetings for a timezone.
package greeting

import (
	"time"
	_ "time/tzdata" // 容器镜像中可能没有时区数据

	"melodify/model"
)

// TimeOfDay 一天中的时段
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

var contextMessages = map[TimeOfDay]string{
	Morning:   "Start your day with some great music",
	Afternoon: "Perfect time for your favorite tunes",
	Evening:   "Wind down with some relaxing music",
	Night:     "Late night vibes coming up",
}

// Greeting 基础问候
type Greeting struct {
	Message   string    `json:"message"`
	TimeOfDay TimeOfDay `json:"timeOfDay"`
	Hour      int       `json:"hour"`
	Timezone  string    `json:"timezone"`
	Timestamp time.Time `json:"timestamp"`
}

// Personalized 带用户名的问候
type Personalized struct {
	Greeting
	PersonalizedMessage string      `json:"personalizedMessage"`
	User                GreetedUser `json:"user"`
}

type GreetedUser struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
}

// Contextual 带音乐提示语的问候
type Contextual struct {
	Greeting
	ContextualMessage string `json:"contextualMessage"`
}

// ForTimezone returns the greeting for now in the IANA zone tz. Unknown zones fall back to UTC.
func ForTimezone(tz string, now time.Time) Greeting {
	loc, err := time.LoadLocation(tz)
	if tz == "" || err != nil {
		tz, loc = "UTC", time.UTC
	}

	hour := now.In(loc).Hour()
	tod := Classify(hour)
	return Greeting{
		Message:   messageFor(tod),
		TimeOfDay: tod,
		Hour:      hour,
		Timezone:  tz,
		Timestamp: now.UTC(),
	}
}

// Classify maps an hour (0-23) to its time of day.
func Classify(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 21:
		return Evening
	default:
		return Night
	}
}

// Personalize addresses the greeting to the user's first name. user may be nil.
func Personalize(g Greeting, user *model.User) Personalized {
	p := Personalized{Greeting: g, PersonalizedMessage: g.Message}
	if user == nil {
		return p
	}
	first := user.FirstName()
	p.User = GreetedUser{ID: user.ExternalID, Name: user.FullName, FirstName: first}
	if first != "" {
		p.PersonalizedMessage = g.Message + ", " + first
	}
	return p
}

// Contextualize appends the music line for the time of day.
func Contextualize(g Greeting) Contextual {
	return Contextual{
		Greeting:          g,
		ContextualMessage: g.Message + "! " + contextMessages[g.TimeOfDay],
	}
}

func messageFor(tod TimeOfDay) string {
	switch tod {
	case Morning:
		return "Good morning"
	case Afternoon:
		return "Good afternoon"
	case Evening:
		return "Good evening"
	default:
		return "Good night"
	}
}
