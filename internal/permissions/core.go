package permissions

// Module names used to group the console catalogue.
const (
	ModuleEmployee    = "employee"
	ModuleLeave       = "leave"
	ModulePayroll     = "payroll"
	ModuleBudget      = "budget"
	ModuleProcurement = "procurement"
	ModuleMeeting     = "meeting"
	ModuleMenu        = "menu"
	ModuleRole        = "role"
	ModuleActivity    = "activity"
)

func init() {
	perms := []*Permission{
		{ID: "employee.view", Name: "View employees", Module: ModuleEmployee, Description: "View employee records"},
		{ID: "employee.manage", Name: "Manage employees", Module: ModuleEmployee, DependsOn: []string{"employee.view"}, Description: "Create, edit and archive employee records"},

		{ID: "leave.view", Name: "View leave", Module: ModuleLeave, Description: "View leave applications"},
		{ID: "leave.apply", Name: "Apply for leave", Module: ModuleLeave, DependsOn: []string{"leave.view"}, Description: "Submit leave applications"},
		{ID: "leave.approve", Name: "Approve leave", Module: ModuleLeave, DependsOn: []string{"leave.view"}, Description: "Approve or reject leave applications"},
		{ID: "leave.manage", Name: "Manage leave", Module: ModuleLeave, DependsOn: []string{"leave.view"}, Implies: []string{"leave.approve"}, Description: "Configure leave types and balances"},

		{ID: "payroll.view", Name: "View payroll", Module: ModulePayroll, Description: "View payroll periods and payslips"},
		{ID: "payroll.run", Name: "Run payroll", Module: ModulePayroll, DependsOn: []string{"payroll.view"}, Description: "Execute payroll runs"},
		{ID: "payroll.manage", Name: "Manage payroll", Module: ModulePayroll, DependsOn: []string{"payroll.view"}, Implies: []string{"payroll.run"}, Description: "Configure salary components and payroll periods"},

		{ID: "budget.view", Name: "View budgets", Module: ModuleBudget, Description: "View budgets and spending"},
		{ID: "budget.manage", Name: "Manage budgets", Module: ModuleBudget, DependsOn: []string{"budget.view"}, Description: "Create and revise budgets"},

		{ID: "procurement.view", Name: "View procurement", Module: ModuleProcurement, Description: "View purchase requests and orders"},
		{ID: "procurement.manage", Name: "Manage procurement", Module: ModuleProcurement, DependsOn: []string{"procurement.view"}, Description: "Raise and approve purchase requests"},

		{ID: "meeting.view", Name: "View meetings", Module: ModuleMeeting, Description: "View scheduled meetings"},
		{ID: "meeting.manage", Name: "Manage meetings", Module: ModuleMeeting, DependsOn: []string{"meeting.view"}, Description: "Schedule meetings and record minutes"},

		{ID: "menu.view", Name: "View menus", Module: ModuleMenu, Description: "View the menu hierarchy and its access grants"},
		{ID: "menu.manage", Name: "Manage menus", Module: ModuleMenu, DependsOn: []string{"menu.view"}, Description: "Create, move and delete menus and edit their access grants"},

		{ID: "role.view", Name: "View roles", Module: ModuleRole, Description: "View roles and the permission catalogue"},
		{ID: "role.manage", Name: "Manage roles", Module: ModuleRole, DependsOn: []string{"role.view"}, Description: "Create roles and assign their permissions"},

		{ID: "activity.view", Name: "View activity", Module: ModuleActivity, Description: "View the activity log"},
		{ID: "activity.export", Name: "Export activity", Module: ModuleActivity, DependsOn: []string{"activity.view"}, Description: "Download the activity log as a workbook"},
	}

	for _, perm := range perms {
		if err := Register(perm); err != nil {
			panic(err)
		}
	}
}
