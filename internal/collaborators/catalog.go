package collaborators

// ModelCategories are the asset subdirectory names the engine recognizes,
// grounded on original_source/config.py's MODEL_CATEGORIES list.
var ModelCategories = []string{
	"checkpoints",
	"diffusion_models",
	"vae",
	"clip",
	"text_encoders",
	"loras",
	"controlnet",
	"gguf",
	"unet",
	"embeddings",
	"upscale_models",
	"clip_vision",
	"model_patches",
	"latent_upscale_models",
}

// RegistryModel is one curated, known-good model entry a user can request
// by id without hand-typing a HuggingFace path.
type RegistryModel struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Folder   string  `json:"folder"`
	SizeGB   float64 `json:"size_gb"`
	Repo     string  `json:"repo"`
	Filename string  `json:"filename"`
}

// ModelRegistry is a small curated catalog standing in for the original's
// data/models_registry.py, which was not present in the retrieved source
// tree; the shape and a representative sample are preserved.
var ModelRegistry = []RegistryModel{
	{ID: "sd15-pruned", Name: "Stable Diffusion 1.5 (pruned)", Folder: "checkpoints", SizeGB: 4.27, Repo: "runwayml/stable-diffusion-v1-5", Filename: "v1-5-pruned-emaonly.safetensors"},
	{ID: "sdxl-base", Name: "SDXL Base 1.0", Folder: "checkpoints", SizeGB: 6.94, Repo: "stabilityai/stable-diffusion-xl-base-1.0", Filename: "sd_xl_base_1.0.safetensors"},
	{ID: "sdxl-vae", Name: "SDXL VAE", Folder: "vae", SizeGB: 0.33, Repo: "stabilityai/sdxl-vae", Filename: "sdxl_vae.safetensors"},
	{ID: "clip-vit-l", Name: "CLIP ViT-L", Folder: "clip", SizeGB: 0.89, Repo: "openai/clip-vit-large-patch14", Filename: "model.safetensors"},
	{ID: "control-canny-sdxl", Name: "ControlNet Canny (SDXL)", Folder: "controlnet", SizeGB: 2.5, Repo: "diffusers/controlnet-canny-sdxl-1.0", Filename: "diffusion_pytorch_model.safetensors"},
}

// RegistryNode is one curated custom-node entry.
type RegistryNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Repo        string `json:"repo"`
	Required    bool   `json:"required"`
}

// NodeRegistry is a small curated catalog standing in for the original's
// data/custom_nodes_registry.py, which was not present in the retrieved
// source tree.
var NodeRegistry = []RegistryNode{
	{ID: "comfyui-manager", Name: "ComfyUI-Manager", Category: "management", Description: "Install, update, and manage custom nodes from the UI", Repo: "https://github.com/ltdrdata/ComfyUI-Manager", Required: false},
	{ID: "controlnet-aux", Name: "ControlNet Auxiliary Preprocessors", Category: "preprocessing", Description: "Preprocessors for ControlNet conditioning images", Repo: "https://github.com/Fannovel16/comfyui_controlnet_aux", Required: false},
	{ID: "impact-pack", Name: "Impact Pack", Category: "utility", Description: "Detailer, segmentation, and workflow utility nodes", Repo: "https://github.com/ltdrdata/ComfyUI-Impact-Pack", Required: false},
}

// NodeCategories lists the categories NodeRegistry entries are grouped by.
func NodeCategories() []string {
	seen := make(map[string]struct{})
	var cats []string
	for _, n := range NodeRegistry {
		if _, ok := seen[n.Category]; !ok {
			seen[n.Category] = struct{}{}
			cats = append(cats, n.Category)
		}
	}
	return cats
}
