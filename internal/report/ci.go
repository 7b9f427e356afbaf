// Package report builds human-facing links for a finished run: the CI report
// file URL derived from build-server environment variables, and Report
// Portal deep links resolved from the launch's item hierarchy.
package report

import (
	"fmt"
	"os"

	"rfrelay/internal/logging"
	"rfrelay/internal/model"
)

// Environment variables consulted for the CI report location. TeamCity needs
// all four of its variables; Jenkins needs only the build URL.
const (
	envTeamCityHost      = "TEAMCITY_HOST_URL"
	envTeamCityBuildType = "TEAMCITY_BUILDTYPE_ID"
	envTeamCityBuildID   = "TEAMCITY_BUILD_ID"
	envArtifactPath      = "REPORT_ARTIFACT_PATH"
	envJenkinsBuildURL   = "JENKINS_BUILD_URL"
)

// CIReport resolves the URL of the engine's HTML report as published by the
// CI server the run executed on.
type CIReport struct {
	lookupEnv func(string) (string, bool)

	link     string
	resolved bool
}

// NewCIReport reads from the process environment.
func NewCIReport() *CIReport {
	return &CIReport{lookupEnv: os.LookupEnv}
}

// Link returns the report file URL, or "" when the environment carries no
// recognized CI variables. The lookup result is cached.
func (r *CIReport) Link() string {
	if !r.resolved {
		r.link = r.build()
		r.resolved = true
	}
	return r.link
}

// TestLink deep-links into the report's search view for the test's TestRail
// case tag. Without a report link or a testrailid tag the plain report link
// (possibly "") is returned.
func (r *CIReport) TestLink(test *model.Test) string {
	link := r.Link()
	if link == "" {
		return ""
	}
	for _, tag := range test.Tags {
		if len(tag) > len("testrailid=") && tag[:len("testrailid=")] == "testrailid=" {
			return link + "#search?include=" + tag
		}
	}
	return link
}

func (r *CIReport) build() string {
	if host, ok := r.lookupEnv(envTeamCityHost); ok {
		buildType, okType := r.lookupEnv(envTeamCityBuildType)
		buildID, okID := r.lookupEnv(envTeamCityBuildID)
		artifact, okArtifact := r.lookupEnv(envArtifactPath)
		if !okType || !okID || !okArtifact {
			logging.New("report").Error("incomplete TeamCity environment, report link unavailable")
			return ""
		}
		return fmt.Sprintf("%s/repository/download/%s/%s:id/%s/report.html",
			host, buildType, buildID, artifact)
	}
	if buildURL, ok := r.lookupEnv(envJenkinsBuildURL); ok {
		return buildURL + "robot/report/report.html"
	}
	return ""
}
