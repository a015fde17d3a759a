package domain

import "time"

// Course is the top level of the topic hierarchy.
type Course struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Module groups topics within a course.
type Module struct {
	ID          string
	CourseID    string
	Name        string
	Description string
	OrderIndex  int
	CreatedAt   time.Time
}

// Topic is the leaf a doubt is filed against.
type Topic struct {
	ID          string
	ModuleID    string
	Name        string
	Description string
	OrderIndex  int
	CreatedAt   time.Time
}

// TopicPath resolves a topic to its module and course.
type TopicPath struct {
	Course Course
	Module Module
	Topic  Topic
}
