/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package routeros

// Commands issued by the monitoring cycle.
const (
	CmdSystemResource = "/system/resource/print"
	CmdPPPActive      = "/ppp/active/print"
	CmdInterfaces     = "/interface/print"
	CmdMonitorTraffic = "/interface/monitor-traffic"
)

// Sentence builds an API sentence from a command word and attribute pairs.
// Attributes are given as key, value, key, value.
func Sentence(command string, attrs ...string) []string {
	out := make([]string, 0, 1+len(attrs)/2)
	out = append(out, command)

	for i := 0; i+1 < len(attrs); i += 2 {
		out = append(out, "="+attrs[i]+"="+attrs[i+1])
	}

	return out
}

// MonitorTraffic returns the one-shot traffic sample sentence for iface.
func MonitorTraffic(iface string) []string {
	return Sentence(CmdMonitorTraffic, "interface", iface, "once", "")
}
