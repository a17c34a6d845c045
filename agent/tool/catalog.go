package tool

import (
	"net/http"

	"github.com/tanpawarit/construction-support-assistant/agent/records"
)

var (
	MachineInfoDescriptor = Descriptor{
		Name:        ToolGetMachineInfo,
		Description: "車両情報を取得する",
		Parameters: []Parameter{
			{Name: "model", Type: "string", Description: "機種 (例: PC200-8)", Required: true},
			{Name: "serial", Type: "string", Description: "号機番号 (例: 500001)", Required: true},
		},
	}

	ManualSearchDescriptor = Descriptor{
		Name:        ToolSearchManual,
		Description: "マニュアルを検索する('Operation and maintenance manual' or 'Shop manual')。",
		Parameters: []Parameter{
			{Name: "model", Type: "string", Required: true},
			{Name: "serial", Type: "string", Required: true},
			{Name: "documentType", Type: "string", Required: true},
			{Name: "query", Type: "string", Required: true},
		},
	}

	NotifyStaffDescriptor = Descriptor{
		Name:        ToolNotifyStaff,
		Description: "担当者にメッセージを通知する",
		Parameters: []Parameter{
			{Name: "userId", Type: "string", Required: true},
			{Name: "title", Type: "string", Required: true},
			{Name: "messageContent", Type: "string", Required: true},
			{Name: "customerId", Type: "string", Required: true},
			{Name: "customerName", Type: "string", Required: true},
			{Name: "customerUserId", Type: "string", Required: true},
			{Name: "customerUserName", Type: "string", Required: true},
			{Name: "recipientUserIds", Type: "array", Items: "string", Required: true},
		},
	}
)

type Dependencies struct {
	Roster       records.Roster
	Inbox        records.Inbox
	ManualSearch ManualSearchConfig
	HTTPClient   *http.Client
	Publisher    Publisher // optional
	Strict       bool
}

// BuildRegistry wires the support tools in the order they are advertised.
func BuildRegistry(deps Dependencies) (*Registry, error) {
	machines := NewMachineLookup(deps.Roster)
	manuals := NewManualSearch(deps.ManualSearch, deps.HTTPClient)
	notifier := NewStaffNotifier(deps.Inbox, deps.Publisher)

	return NewRegistry([]Registration{
		{Descriptor: MachineInfoDescriptor, Executor: machines.Execute},
		{Descriptor: ManualSearchDescriptor, Executor: manuals.Execute},
		{Descriptor: NotifyStaffDescriptor, Executor: notifier.Execute},
	}, WithStrictArguments(deps.Strict))
}
