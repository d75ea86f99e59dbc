package model

import "regexp"

// CourseCodePattern is the shape of a SIAKAD course code, e.g. IF25-10001
// or SD25-40003. It tracks the current cohort format and has to be revisited
// when the portal rolls a new one.
var CourseCodePattern = regexp.MustCompile(`^[A-Z]{2,4}25-[0-9]{5}$`)

// Course is one registration target: a course code paired with the opaque
// class/section identifier the portal expects in the registration form.
type Course struct {
	Code    string `json:"code"`
	ClassID string `json:"classId"`
}

func ValidCourseCode(code string) bool {
	return CourseCodePattern.MatchString(code)
}

// CoursesFromMap converts the configured code->classId mapping into a slice.
func CoursesFromMap(in map[string]string) []Course {
	out := make([]Course, 0, len(in))
	for code, classID := range in {
		out = append(out, Course{Code: code, ClassID: classID})
	}
	return out
}
