package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one endpoint
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents one request
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure represents failed tests of a request
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a request that produced no response
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitReporter struct{}

func NewJUnitReporter() *JUnitReporter {
	return &JUnitReporter{}
}

func (JUnitReporter) Write(w io.Writer, report *Report) error {
	suites := JUnitTestSuites{
		Name:      "apiscan",
		Time:      report.DurationMs / 1000,
		Timestamp: report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	for _, e := range report.Endpoints {
		if len(e.Requests) == 0 {
			continue
		}
		suite := JUnitTestSuite{
			Name:      e.Name,
			Tests:     len(e.Requests),
			TestCases: make([]JUnitTestCase, 0, len(e.Requests)),
		}

		for _, r := range e.Requests {
			tc := JUnitTestCase{
				Name:      r.Name,
				ClassName: e.Name,
				Time:      r.DurationMs / 1000,
			}

			switch {
			case r.Error != "":
				suite.Errors++
				errType := "TransportError"
				if !r.Sent {
					errType = "ResolutionError"
				}
				tc.Error = &JUnitError{Message: r.Error, Type: errType}
				if len(r.FailedTests) > 0 {
					tc.Error.Content = failureText(r)
				}
			case !r.NoFailure:
				suite.Failures++
				tc.Failure = &JUnitFailure{
					Message: fmt.Sprintf("%d of %d tests failed", len(r.FailedTests), len(r.Tests)),
					Type:    "AssertionError",
					Content: failureText(r),
				}
			}

			suite.Time += tc.Time
			suite.TestCases = append(suite.TestCases, tc)
		}

		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.TestSuites = append(suites.TestSuites, suite)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func failureText(r *RequestReport) string {
	var sb strings.Builder
	for _, t := range r.FailedTests {
		fmt.Fprintf(&sb, "%s: %s\n", t.Name, t.Failure)
	}
	return sb.String()
}
