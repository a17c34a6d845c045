package tool

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
)

const (
	ToolGetMachineInfo = "getMachineInfo"

	unknownAddress      = "所在地不明"
	unknownCustomerName = "不明"
	noMachineMessage    = "No such machine in the list"
)

type MachineInfo struct {
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	Address           string   `json:"address"`
	CustomerName      string   `json:"customerName"`
	CustomerID        string   `json:"customerId"`
	MachineID         string   `json:"machineId"`
	Model             string   `json:"model"`
	Serial            string   `json:"serial"`
	DealerCode        string   `json:"dealerCode,omitempty"`
	DealerName        string   `json:"dealerName,omitempty"`
	ContactPersonID   string   `json:"contactPersonId,omitempty"`
	ContactPersonName string   `json:"contactPersonName,omitempty"`
}

type MachineLookupResult struct {
	Found   bool          `json:"found"`
	Data    []MachineInfo `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

// MachineLookup answers getMachineInfo from the customer roster.
type MachineLookup struct {
	roster records.Roster
}

func NewMachineLookup(roster records.Roster) *MachineLookup {
	return &MachineLookup{roster: roster}
}

func (m *MachineLookup) Execute(ctx context.Context, _ string, args map[string]any) (contractx.ToolResult, error) {
	result, err := m.Lookup(ctx, stringArg(args, "model"), stringArg(args, "serial"))
	if err != nil {
		return contractx.ToolResult{}, err
	}
	return contractx.ToolResult{Success: true, Payload: result}, nil
}

// Lookup returns every exact model+serial match in roster order.
func (m *MachineLookup) Lookup(ctx context.Context, model, serial string) (MachineLookupResult, error) {
	companies, err := m.roster.Companies(ctx)
	if err != nil {
		return MachineLookupResult{}, fmt.Errorf("load machine roster: %w", err)
	}

	var matches []MachineInfo
	for _, company := range companies {
		for _, machine := range company.Machines {
			if machine.Model != model || machine.Serial != serial {
				continue
			}
			matches = append(matches, machineInfo(company, machine))
		}
	}

	if len(matches) == 0 {
		return MachineLookupResult{Found: false, Message: noMachineMessage}, nil
	}
	return MachineLookupResult{Found: true, Data: matches}, nil
}

func machineInfo(company records.Company, machine records.Machine) MachineInfo {
	info := MachineInfo{
		Latitude:          machine.Latitude,
		Longitude:         machine.Longitude,
		Address:           company.Address,
		CustomerName:      company.CompanyName,
		CustomerID:        company.CompanyID,
		MachineID:         machine.MachineID,
		Model:             machine.Model,
		Serial:            machine.Serial,
		DealerCode:        company.DealerCode,
		DealerName:        company.DealerName,
		ContactPersonID:   company.ContactPersonID,
		ContactPersonName: company.ContactPersonName,
	}
	if info.Address == "" {
		info.Address = unknownAddress
	}
	if info.CustomerName == "" {
		info.CustomerName = unknownCustomerName
	}
	return info
}
