package permissions

// Capability names a single boolean permission. The enumeration below is a
// versioned contract with every caller: renaming or removing a name is a
// breaking change, while a newly added name reads as false on every existing
// role, group, and override record until explicitly granted.
type Capability string

// User management capabilities.
const (
	CapSeeUsers    Capability = "users.see"
	CapModifyUsers Capability = "users.modify"
	CapEditUsers   Capability = "users.edit"
	CapDeleteUsers Capability = "users.delete"
)

// Project capabilities.
const (
	CapSeeProjects    Capability = "projects.see"
	CapModifyProjects Capability = "projects.modify"
	CapEditProjects   Capability = "projects.edit"
	CapDeleteProjects Capability = "projects.delete"
)

// Task capabilities.
const (
	CapSeeTasks    Capability = "tasks.see"
	CapModifyTasks Capability = "tasks.modify"
	CapEditTasks   Capability = "tasks.edit"
	CapDeleteTasks Capability = "tasks.delete"
)

// Stakeholder register capabilities.
const (
	CapSeeStakeholders    Capability = "stakeholders.see"
	CapModifyStakeholders Capability = "stakeholders.modify"
	CapEditStakeholders   Capability = "stakeholders.edit"
	CapDeleteStakeholders Capability = "stakeholders.delete"
)

// RAID log capabilities.
const (
	CapSeeRaidLogs    Capability = "raidlogs.see"
	CapModifyRaidLogs Capability = "raidlogs.modify"
	CapEditRaidLogs   Capability = "raidlogs.edit"
	CapDeleteRaidLogs Capability = "raidlogs.delete"
)

// Communications plan capabilities.
const (
	CapSeeCommunications    Capability = "communications.see"
	CapModifyCommunications Capability = "communications.modify"
	CapEditCommunications   Capability = "communications.edit"
	CapDeleteCommunications Capability = "communications.delete"
)

// Survey capabilities.
const (
	CapSeeSurveys    Capability = "surveys.see"
	CapModifySurveys Capability = "surveys.modify"
	CapEditSurveys   Capability = "surveys.edit"
	CapDeleteSurveys Capability = "surveys.delete"
)

// Mind map capabilities.
const (
	CapSeeMindMaps    Capability = "mindmaps.see"
	CapModifyMindMaps Capability = "mindmaps.modify"
	CapEditMindMaps   Capability = "mindmaps.edit"
	CapDeleteMindMaps Capability = "mindmaps.delete"
)

// Process map capabilities.
const (
	CapSeeProcessMaps    Capability = "processmaps.see"
	CapModifyProcessMaps Capability = "processmaps.modify"
	CapEditProcessMaps   Capability = "processmaps.edit"
	CapDeleteProcessMaps Capability = "processmaps.delete"
)

// Gantt chart capabilities.
const (
	CapSeeGanttCharts    Capability = "gantt.see"
	CapModifyGanttCharts Capability = "gantt.modify"
	CapEditGanttCharts   Capability = "gantt.edit"
	CapDeleteGanttCharts Capability = "gantt.delete"
)

// Checklist template capabilities.
const (
	CapSeeChecklists    Capability = "checklists.see"
	CapModifyChecklists Capability = "checklists.modify"
	CapEditChecklists   Capability = "checklists.edit"
	CapDeleteChecklists Capability = "checklists.delete"
)

// Report capabilities.
const (
	CapSeeReports    Capability = "reports.see"
	CapModifyReports Capability = "reports.modify"
	CapEditReports   Capability = "reports.edit"
	CapDeleteReports Capability = "reports.delete"
)

// Role administration capabilities.
const (
	CapSeeRoles    Capability = "roles.see"
	CapModifyRoles Capability = "roles.modify"
	CapEditRoles   Capability = "roles.edit"
	CapDeleteRoles Capability = "roles.delete"
)

// Group administration capabilities.
const (
	CapSeeGroups    Capability = "groups.see"
	CapModifyGroups Capability = "groups.modify"
	CapEditGroups   Capability = "groups.edit"
	CapDeleteGroups Capability = "groups.delete"
)

// Security settings, email system, and system administration surfaces carry
// only see/edit: there is nothing to create or delete, only configuration.
const (
	CapSeeSecuritySettings  Capability = "security.see"
	CapEditSecuritySettings Capability = "security.edit"

	CapSeeEmailSystem  Capability = "email.see"
	CapEditEmailSystem Capability = "email.edit"

	CapSeeSystemSettings  Capability = "system.see"
	CapEditSystemSettings Capability = "system.edit"
)

// allCapabilities is the closed enumeration in its stable, published order.
var allCapabilities = []Capability{
	CapSeeUsers, CapModifyUsers, CapEditUsers, CapDeleteUsers,
	CapSeeProjects, CapModifyProjects, CapEditProjects, CapDeleteProjects,
	CapSeeTasks, CapModifyTasks, CapEditTasks, CapDeleteTasks,
	CapSeeStakeholders, CapModifyStakeholders, CapEditStakeholders, CapDeleteStakeholders,
	CapSeeRaidLogs, CapModifyRaidLogs, CapEditRaidLogs, CapDeleteRaidLogs,
	CapSeeCommunications, CapModifyCommunications, CapEditCommunications, CapDeleteCommunications,
	CapSeeSurveys, CapModifySurveys, CapEditSurveys, CapDeleteSurveys,
	CapSeeMindMaps, CapModifyMindMaps, CapEditMindMaps, CapDeleteMindMaps,
	CapSeeProcessMaps, CapModifyProcessMaps, CapEditProcessMaps, CapDeleteProcessMaps,
	CapSeeGanttCharts, CapModifyGanttCharts, CapEditGanttCharts, CapDeleteGanttCharts,
	CapSeeChecklists, CapModifyChecklists, CapEditChecklists, CapDeleteChecklists,
	CapSeeReports, CapModifyReports, CapEditReports, CapDeleteReports,
	CapSeeRoles, CapModifyRoles, CapEditRoles, CapDeleteRoles,
	CapSeeGroups, CapModifyGroups, CapEditGroups, CapDeleteGroups,
	CapSeeSecuritySettings, CapEditSecuritySettings,
	CapSeeEmailSystem, CapEditEmailSystem,
	CapSeeSystemSettings, CapEditSystemSettings,
}

var capabilityIndex = func() map[Capability]struct{} {
	idx := make(map[Capability]struct{}, len(allCapabilities))
	for _, c := range allCapabilities {
		idx[c] = struct{}{}
	}
	return idx
}()

// Capabilities returns the full enumeration in stable order. The returned
// slice is a copy and safe to modify.
func Capabilities() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

// IsValid reports whether name belongs to the capability enumeration.
func IsValid(name Capability) bool {
	_, ok := capabilityIndex[name]
	return ok
}
