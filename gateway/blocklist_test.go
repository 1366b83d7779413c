// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"testing"
)

func TestCheckCommandBlocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
	}{
		{name: "rm_rf_root", command: "rm -rf /"},
		{name: "rm_fr_root", command: "rm -fr /"},
		{name: "rm_rf_root_uppercase", command: "RM -RF /"},
		{name: "rm_rf_root_mixed_case", command: "Rm -Rf /"},
		{name: "rm_split_flags", command: "rm -r -f /"},
		{name: "rm_rf_root_glob", command: "rm -rf /*"},
		{name: "rm_rf_root_with_sudo", command: "sudo rm -rf /"},
		{name: "rm_rf_root_in_chain", command: "echo hi && rm -rf / && echo done"},
		{name: "mkfs", command: "mkfs /dev/sda1"},
		{name: "mkfs_ext4", command: "mkfs.ext4 -F /dev/sdb"},
		{name: "mkfs_uppercase", command: "MKFS.EXT4 /dev/sda"},
		{name: "dd_to_block_device", command: "dd if=image.iso of=/dev/sdb bs=4M"},
		{name: "dd_from_device_to_device", command: "dd if=/dev/zero of=/dev/sda"},
		{name: "dd_uppercase", command: "DD IF=/dev/urandom OF=/dev/sda"},
		{name: "redirect_to_device", command: "echo garbage > /dev/sda"},
		{name: "append_to_device", command: "cat junk >> /dev/sdb1"},
		{name: "shutdown", command: "shutdown -h now"},
		{name: "shutdown_mixed_case", command: "ShUtDoWn -r +5"},
		{name: "shutdown_in_chain", command: "true; shutdown now"},
		{name: "reboot", command: "reboot"},
		{name: "reboot_with_sudo", command: "sudo reboot"},
		{name: "passwd", command: "passwd root"},
		{name: "useradd", command: "useradd -m intruder"},
		{name: "userdel", command: "userdel admin"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := CheckCommand(test.command)
			if err == nil {
				t.Fatalf("CheckCommand(%q) = nil, want *BlockedError", test.command)
			}
			var blocked *BlockedError
			if !errors.As(err, &blocked) {
				t.Fatalf("CheckCommand(%q) = %T, want *BlockedError", test.command, err)
			}
			if blocked.Reason == "" {
				t.Error("BlockedError has empty reason")
			}
		})
	}
}

func TestCheckCommandAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
	}{
		{name: "ls", command: "ls -la /srv/app"},
		{name: "git_pull", command: "git pull origin main"},
		{name: "docker_ps", command: "docker ps -a"},
		{name: "compose_up", command: "docker compose -p web up -d --build"},
		{name: "rm_single_file", command: "rm build.log"},
		{name: "rm_rf_subdirectory", command: "rm -rf ./build"},
		{name: "rm_rf_absolute_subdirectory", command: "rm -rf /srv/app/tmp"},
		{name: "dd_between_files", command: "dd if=backup.img of=restore.img"},
		{name: "redirect_to_file", command: "docker compose build > /var/log/dockhand/build.log 2>&1"},
		{name: "word_containing_reboot", command: "echo rebooting the app container"},
		{name: "word_containing_passwd", command: "grep mypasswd config.ini"},
		{name: "word_containing_dd", command: "echo added a file"},
		{name: "tail_log", command: "tail -c +1 /var/log/dockhand/deploy-web.log"},
		{name: "pid_probe", command: `kill -0 $(cat /var/log/dockhand/deploy-web.log.pid)`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			if err := CheckCommand(test.command); err != nil {
				t.Errorf("CheckCommand(%q) = %v, want nil", test.command, err)
			}
		})
	}
}
