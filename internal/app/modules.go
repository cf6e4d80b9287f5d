package app

import (
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/modules/file_copy"
	"github.com/vk/bozogo/modules/file_templating"
	"github.com/vk/bozogo/modules/git_hashes"
	"github.com/vk/bozogo/modules/git_tag"
	"github.com/vk/bozogo/modules/jenkins"
	"github.com/vk/bozogo/modules/notify"
	"github.com/vk/bozogo/modules/parallel_tests"
	"github.com/vk/bozogo/modules/shell"
	"github.com/vk/bozogo/modules/teamcity"
	"github.com/vk/bozogo/modules/timing"
)

// coreModules is the definitive list of all step modules compiled into the
// bozogo binary.
var coreModules = []registry.Module{
	&shell.Module{},
	&file_templating.Module{},
	&timing.Module{},
	&teamcity.Module{},
	&jenkins.Module{},
	&git_hashes.Module{},
	&git_tag.Module{},
	&parallel_tests.Module{},
	&file_copy.Module{},
	&notify.Module{},
}
