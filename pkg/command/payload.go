// pkg/command/payload.go - generated bash payloads for deployment commands.

package command

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// consoleURL is the endpoint the device-side script calls with its signed
// requests. Devices authenticate with their own key, not the importer's.
const consoleURL = "https://console.jumpcloud.com"

// PopulateParams carries everything the payload templates need.
type PopulateParams struct {
	ArtifactURL string
	PkgPath     string
	PreGroupID  string
	PostGroupID string
	// Manual selects the install-only payload with no group logic.
	Manual  bool
	Trigger *TriggerConfig
}

type payloadData struct {
	PkgName     string
	ArtifactURL string
	PreGroupID  string
	PostGroupID string
	ConsoleURL  string
}

// manualPayload downloads and installs the package, nothing else. It exits
// non-zero when the installer fails so the command run is reported failed.
const manualPayload = `#!/bin/bash
# Deployment generated by jcimporter.

curl --silent --output /tmp/{{.PkgName}} "{{.ArtifactURL}}"
installer -pkg /tmp/{{.PkgName}} -target /
if [ $? -ne 0 ]; then
	echo "install of {{.PkgName}} failed"
	exit 1
fi
exit 0
`

// selfServicePayload installs the package, then the device records its own
// completion: it signs two membership requests with its local client key
// (request-line plus date, validated server-side against the device's known
// public key), leaving the pre-install group and joining the post-install
// group. Completion therefore reaches the console without the importer
// polling again, and post-install membership lags actual installs.
const selfServicePayload = `#!/bin/bash
# Deployment generated by jcimporter.
# preGroupID/postGroupID correspond to the AutoPkg groups for this title.

preGroupID="{{.PreGroupID}}"
postGroupID="{{.PostGroupID}}"

#---------------------Install the package----------------------------
curl --silent --output /tmp/{{.PkgName}} "{{.ArtifactURL}}"
installer -pkg /tmp/{{.PkgName}} -target /
if [ $? -ne 0 ]; then
	echo "install of {{.PkgName}} failed"
	exit 1
fi
#--------------------Do not modify below this line--------------------

# Parse the systemKey from the agent conf file.
conf="$(cat /opt/jc/jcagent.conf)"
regex='"systemKey":"[a-zA-Z0-9]{24}"'

if [[ $conf =~ $regex ]]; then
	systemKey="${BASH_REMATCH[@]}"
fi

regex='[a-zA-Z0-9]{24}'
if [[ $systemKey =~ $regex ]]; then
	systemID="${BASH_REMATCH[@]}"
fi

# Get the current time.
now=$(date -u "+%a, %d %h %Y %H:%M:%S GMT")

# Leave the pre-install group: sign the request-line and date with the
# device key, then post the membership change as this system.
signstr="POST /api/v2/systemgroups/${preGroupID}/members HTTP/1.1\ndate: ${now}"
signature=$(printf "$signstr" | openssl dgst -sha256 -sign /opt/jc/client.key | openssl enc -e -a | tr -d '\n')

curl -s \
	-X 'POST' \
	-H 'Content-Type: application/json' \
	-H 'Accept: application/json' \
	-H "Date: ${now}" \
	-H "Authorization: Signature keyId=\"system/${systemID}\",headers=\"request-line date\",algorithm=\"rsa-sha256\",signature=\"${signature}\"" \
	-d '{"op": "remove","type": "system","id": "'${systemID}'"}' \
	"{{.ConsoleURL}}/api/v2/systemgroups/${preGroupID}/members"

echo "system ${systemID} removed from group ${preGroupID}"

# Join the post-install group the same way.
signstr="POST /api/v2/systemgroups/${postGroupID}/members HTTP/1.1\ndate: ${now}"
signature=$(printf "$signstr" | openssl dgst -sha256 -sign /opt/jc/client.key | openssl enc -e -a | tr -d '\n')

curl -s \
	-X 'POST' \
	-H 'Content-Type: application/json' \
	-H 'Accept: application/json' \
	-H "Date: ${now}" \
	-H "Authorization: Signature keyId=\"system/${systemID}\",headers=\"request-line date\",algorithm=\"rsa-sha256\",signature=\"${signature}\"" \
	-d '{"op": "add","type": "system","id": "'${systemID}'"}' \
	"{{.ConsoleURL}}/api/v2/systemgroups/${postGroupID}/members"

echo "system ${systemID} added to group ${postGroupID}"
exit 0
`

var (
	manualTmpl      = template.Must(template.New("manual").Parse(manualPayload))
	selfServiceTmpl = template.Must(template.New("selfservice").Parse(selfServicePayload))
)

// renderPayload produces the script body for the run's mode.
func renderPayload(params PopulateParams) (string, error) {
	data := payloadData{
		PkgName:     filepath.Base(params.PkgPath),
		ArtifactURL: params.ArtifactURL,
		PreGroupID:  params.PreGroupID,
		PostGroupID: params.PostGroupID,
		ConsoleURL:  consoleURL,
	}

	tmpl := selfServiceTmpl
	if params.Manual {
		tmpl = manualTmpl
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering command payload: %w", err)
	}
	return buf.String(), nil
}
