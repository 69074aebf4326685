// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"mixdeck/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100, HostAPI: "Core Audio"},
	{ID: 2, Name: "Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 192000},
}

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

// send feeds msgs through Update and returns the final model and command.
func send(t *testing.T, m DeviceListModel, msgs ...tea.Msg) (DeviceListModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(DeviceListModel)
	}
	return m, cmd
}

func ready(t *testing.T) DeviceListModel {
	t.Helper()
	m, _ := send(t, NewDeviceListModel(), tea.WindowSizeMsg{Width: 80, Height: 40}, devicesMsg{testDevices})
	return m
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestFetchDevices(t *testing.T) {
	orig := listDevices
	t.Cleanup(func() { listDevices = orig })

	listDevices = func() ([]audio.Device, error) { return testDevices, nil }
	if msg, ok := NewDeviceListModel().Init()().(devicesMsg); !ok || len(msg.devices) != 3 {
		t.Errorf("Init() command returned %#v", msg)
	}

	listDevices = func() ([]audio.Device, error) { return nil, errors.New("no backend") }
	m, _ := send(t, NewDeviceListModel(), fetchDevices())
	if !strings.Contains(m.View(), "no backend") {
		t.Errorf("View() = %q, want the error", m.View())
	}
}

func TestListsOnlyOutputDevices(t *testing.T) {
	m := ready(t)
	if len(m.devices) != 2 {
		t.Fatalf("listed %d devices, want 2", len(m.devices))
	}
	view := m.View()
	if strings.Contains(view, "Microphone") {
		t.Error("input-only device listed")
	}
	for _, want := range []string{"Output Devices", "[1] Speakers (Output)", "via Core Audio", "[2] Interface (Input/Output)"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestNavigationStaysInRange(t *testing.T) {
	m := ready(t)
	m, _ = send(t, m, keyUp)
	if m.selectedIndex != 0 {
		t.Errorf("up at top moved to %d", m.selectedIndex)
	}
	m, _ = send(t, m, keyDown, keyDown, keyDown)
	if m.selectedIndex != 1 {
		t.Errorf("down past the end moved to %d, want 1", m.selectedIndex)
	}
}

func TestSelectDeviceAndRate(t *testing.T) {
	m := ready(t)
	// Interface defaults to 192 kHz, which joins the standard rates.
	m, _ = send(t, m, keyDown, keyEnter)
	if m.activeScreen != ConfigScreen {
		t.Fatal("enter did not open the configuration screen")
	}
	if got := m.availableSampleRates[m.sampleRateIndex]; got != 192000 {
		t.Errorf("preselected rate = %v, want the device default", got)
	}
	if !strings.Contains(m.View(), "Configure Device: Interface") {
		t.Errorf("View() = %q", m.View())
	}

	m, cmd := send(t, m, keyUp, keyEnter)
	if !isQuit(cmd) {
		t.Error("confirming did not quit the program")
	}
	want := Selection{DeviceID: 2, DeviceName: "Interface", SampleRate: 96000}
	if got := m.Selection(); got == nil || *got != want {
		t.Errorf("Selection() = %+v, want %+v", got, want)
	}
}

func TestBackAndQuit(t *testing.T) {
	m := ready(t)
	m, _ = send(t, m, keyEnter, keyEsc)
	if m.activeScreen != ListScreen {
		t.Error("esc did not return to the list")
	}
	m, cmd := send(t, m, keyQuit)
	if !isQuit(cmd) {
		t.Error("q did not quit")
	}
	if m.Selection() != nil {
		t.Error("quitting produced a selection")
	}
}

func TestEmptyDeviceList(t *testing.T) {
	m, _ := send(t, NewDeviceListModel(), tea.WindowSizeMsg{Width: 80, Height: 40}, devicesMsg{testDevices[:1]})
	m, _ = send(t, m, keyEnter)
	if m.activeScreen != ListScreen {
		t.Error("enter with no devices left the list")
	}
	if !strings.Contains(m.View(), "No output devices found.") {
		t.Errorf("View() = %q", m.View())
	}
}
