package catalog

type Translation struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type LocalizedText struct {
	Value        string `json:"value"`
	Translations struct {
		Translation []Translation `json:"translation"`
	} `json:"translations"`
}

type CourseType struct {
	Key string `json:"key"`
}

type Semester struct {
	ID int `json:"id"`
}

// CourseDTO is the subset of a catalog course object this module reads.
type CourseDTO struct {
	ID          int64         `json:"id"`
	CourseType  CourseType    `json:"courseTypeDto"`
	CourseTitle LocalizedText `json:"courseTitle"`
	Semester    Semester      `json:"semesterDto"`
}

// EnglishTitle returns the english translation of the title if there is a non-empty one and the
// default title otherwise.
func (c CourseDTO) EnglishTitle() string {
	for _, t := range c.CourseTitle.Translations.Translation {
		if t.Lang == "en" && t.Value != "" {
			return t.Value
		}
	}
	return c.CourseTitle.Value
}

type coursesResponse struct {
	Courses []CourseDTO `json:"courses"`
}

type sameCourse struct {
	ID       int64    `json:"id"`
	Semester Semester `json:"semesterDto"`
}

type sameCoursesResponse struct {
	Courses []sameCourse `json:"courses"`
}

// Filter selects the courses of one curriculum version in one term.
type Filter struct {
	TermID              int
	CurriculumVersionID string
}
