package components

import (
	"github.com/evertras/bubble-table/table"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/styles"
)

const (
	columnKeyPort   = "port"
	columnKeyUART   = "uart"
	columnKeyUSB    = "usb"
	columnKeySerial = "serial"
	columnKeyDesc   = "description"
)

// PortTable renders scan results as a static table
func PortTable(ports []serial.PortDescriptor, width int) string {
	columns := []table.Column{
		table.NewColumn(columnKeyPort, "Port", 14),
		table.NewColumn(columnKeyUART, "UART", 10),
		table.NewColumn(columnKeyUSB, "USB ID", 11),
		table.NewColumn(columnKeySerial, "Serial", 16),
		table.NewFlexColumn(columnKeyDesc, "Description", 1),
	}

	rows := make([]table.Row, 0, len(ports))
	for _, p := range ports {
		data := table.RowData{
			columnKeyPort: p.Name(),
			columnKeyUART: p.UART.String(),
			columnKeyDesc: p.DisplayName,
		}
		if p.USB != nil {
			data[columnKeyUSB] = p.USB.ID()
			data[columnKeySerial] = p.USB.SerialNumber
		} else {
			data[columnKeyUSB] = table.NewStyledCell("-", styles.FaintStyle)
			data[columnKeySerial] = table.NewStyledCell("-", styles.FaintStyle)
		}
		rows = append(rows, table.NewRow(data))
	}

	return table.New(columns).
		WithRows(rows).
		WithTargetWidth(max(width, 80)).
		HeaderStyle(styles.TableHeaderStyle).
		WithBaseStyle(styles.TableBaseStyle).
		BorderRounded().
		View()
}
