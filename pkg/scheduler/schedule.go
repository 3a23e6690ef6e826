package scheduler

import (
	"fmt"
	"time"
)

// Schedule determines when a job runs next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string { return fmt.Sprintf("hourly at :%02d", s.minute) }

type dailySchedule struct {
	hour, minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string { return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute) }

// Every runs a job at a fixed interval measured from the previous start.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic("scheduler.Every: interval must be > 0")
	}
	return intervalSchedule{every: d}
}

// Hourly runs a job at the given minute of every hour.
func Hourly(minute int) Schedule {
	if minute < 0 || minute > 59 {
		panic("scheduler.Hourly: minute out of range")
	}
	return hourlySchedule{minute: minute}
}

// Daily runs a job once a day at hour:minute in the schedule's time zone.
func Daily(hour, minute int) Schedule {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		panic("scheduler.Daily: time out of range")
	}
	return dailySchedule{hour: hour, minute: minute}
}
